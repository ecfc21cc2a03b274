package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/dshills/campaignsearch/internal/embedder"
	"github.com/dshills/campaignsearch/internal/storage"
	"github.com/dshills/campaignsearch/pkg/types"
)

func benchAssets(n int) []types.CampaignAsset {
	assets := make([]types.CampaignAsset, n)
	for i := range assets {
		switch i % 3 {
		case 0:
			assets[i] = npc(fmt.Sprintf("Sailor %d", i), "Drinks at the Empty Net and owes the smugglers")
		case 1:
			assets[i] = plot(fmt.Sprintf("Rumor %d", i), 1+i%5)
		default:
			assets[i] = types.CampaignAsset{
				Name:       fmt.Sprintf("Cove %d", i),
				GMSummary:  "Tidal cave used to land contraband",
				RecordType: types.RecordLocation,
				TypeData:   types.TypeData{Location: &types.LocationData{Region: "Saltmarsh", Terrain: "coast"}},
			}
		}
	}
	return assets
}

func newBenchStorage(b *testing.B) *storage.SQLiteStorage {
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		b.Fatal(err)
	}
	return store
}

// BenchmarkIndexAssets benchmarks a full run with local embeddings
func BenchmarkIndexAssets(b *testing.B) {
	provider, err := embedder.NewLocalProvider(nil)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		store := newBenchStorage(b)
		idx := New(store, WithEmbedder(provider))
		assets := benchAssets(200)
		b.StartTimer()

		if _, err := idx.IndexAssets(context.Background(), uuid.New(), assets, nil); err != nil {
			b.Fatal(err)
		}

		b.StopTimer()
		store.Close()
		b.StartTimer()
	}
}

// BenchmarkIndexAssetsNoEmbeddings benchmarks storage only
func BenchmarkIndexAssetsNoEmbeddings(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		store := newBenchStorage(b)
		idx := New(store)
		assets := benchAssets(200)
		b.StartTimer()

		if _, err := idx.IndexAssets(context.Background(), uuid.New(), assets, nil); err != nil {
			b.Fatal(err)
		}

		b.StopTimer()
		store.Close()
		b.StartTimer()
	}
}

// BenchmarkIncrementalIndex benchmarks a rerun where nothing changed
func BenchmarkIncrementalIndex(b *testing.B) {
	provider, err := embedder.NewLocalProvider(nil)
	if err != nil {
		b.Fatal(err)
	}
	store := newBenchStorage(b)
	defer store.Close()

	idx := New(store, WithEmbedder(provider))
	campaignID := uuid.New()
	assets := benchAssets(200)
	if _, err := idx.IndexAssets(context.Background(), campaignID, assets, nil); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := idx.IndexAssets(context.Background(), campaignID, assets, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkBatchSizes benchmarks different transaction and embedding batch sizes
func BenchmarkBatchSizes(b *testing.B) {
	provider, err := embedder.NewLocalProvider(nil)
	if err != nil {
		b.Fatal(err)
	}

	for _, size := range []int{1, 10, 50, 100} {
		b.Run(fmt.Sprintf("batch_%d", size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				store := newBenchStorage(b)
				idx := New(store, WithEmbedder(provider))
				assets := benchAssets(200)
				b.StartTimer()

				cfg := &Config{BatchSize: size, Workers: 4, GenerateEmbeddings: true}
				if _, err := idx.IndexAssets(context.Background(), uuid.New(), assets, cfg); err != nil {
					b.Fatal(err)
				}

				b.StopTimer()
				store.Close()
				b.StartTimer()
			}
		})
	}
}

// BenchmarkContentHash benchmarks change detection hashing
func BenchmarkContentHash(b *testing.B) {
	asset := npc("Captain Vex", "Runs the smuggling ring at Blackwater Docks")
	text := asset.SearchText()
	data := []byte(`{"npc":{"role":"smuggler","faction":"Scarlet Brotherhood"}}`)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = contentHash(asset.RecordType, data, text)
	}
}
