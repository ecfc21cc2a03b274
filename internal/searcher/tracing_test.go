package searcher

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingTracer(t *testing.T) (*tracetest.SpanRecorder, Option) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, WithTracer(tp.Tracer("searcher-test"))
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	return names
}

func TestSearch_Spans(t *testing.T) {
	campaign := uuid.New()
	ids := newIDs(2)

	t.Run("hybrid search traces each phase", func(t *testing.T) {
		sr, withTracer := recordingTracer(t)
		retriever := &fakeRetriever{
			vector: assetHits(campaign, ids[0]),
			text:   assetHits(campaign, ids[1]),
		}
		s := NewSearcher(retriever, WithEmbedder(&fakeEmbedder{vector: []float32{1, 0}}), withTracer)

		_, err := s.Search(context.Background(), SearchRequest{
			CampaignID: campaign,
			Query:      "harbor",
			Keywords:   "harbor",
		})
		require.NoError(t, err)

		names := spanNames(sr.Ended())
		assert.ElementsMatch(t, []string{"searcher.Search", "searcher.embed", "searcher.vector", "searcher.keyword"}, names)

		var root sdktrace.ReadOnlySpan
		for _, span := range sr.Ended() {
			if span.Name() == "searcher.Search" {
				root = span
			}
		}
		require.NotNil(t, root)
		for _, span := range sr.Ended() {
			if span.Name() != "searcher.Search" {
				assert.Equal(t, root.SpanContext().SpanID(), span.Parent().SpanID(), span.Name())
			}
		}
	})

	t.Run("failure marks the root span", func(t *testing.T) {
		sr, withTracer := recordingTracer(t)
		retriever := &fakeRetriever{textErr: errors.New("disk I/O error")}
		s := NewSearcher(retriever, withTracer)

		_, err := s.Search(context.Background(), SearchRequest{CampaignID: campaign, Keywords: "harbor"})
		require.Error(t, err)

		for _, span := range sr.Ended() {
			if span.Name() == "searcher.Search" {
				assert.Equal(t, codes.Error, span.Status().Code)
				return
			}
		}
		t.Fatal("searcher.Search span not recorded")
	})
}
