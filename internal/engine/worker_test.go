package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/engine/mocks"
	"github.com/datallboy/bossfetch/internal/infra/logger"
)

func drain(results chan domain.FetchResult) []domain.FetchResult {
	close(results)
	var out []domain.FetchResult
	for r := range results {
		out = append(out, r)
	}
	return out
}

func TestWorkerProcessesChunkInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mirror := mocks.NewMockMirror(ctrl)
	gomock.InOrder(
		mirror.EXPECT().Fetch(gomock.Any(), domain.RemoteItem("A")).Return(int64(10), nil),
		mirror.EXPECT().Fetch(gomock.Any(), domain.RemoteItem("B")).Return(int64(0), errors.New("404 Not Found")),
		mirror.EXPECT().Fetch(gomock.Any(), domain.RemoteItem("C")).Return(int64(30), nil),
	)

	results := make(chan domain.FetchResult, 3)
	w := NewWorker(2, domain.JobChunk{Index: 1, Items: items("A", "B", "C")}, mirror, results, logger.Discard())

	assert.Equal(t, 3, w.Run(context.Background()))

	got := drain(results)
	require.Len(t, got, 3)
	assert.Equal(t, domain.FetchResult{Kind: domain.KindSuccess, Item: "A", Bytes: 10, Worker: 2}, got[0])
	assert.Equal(t, domain.FetchResult{Kind: domain.KindFailure, Item: "B", Message: "404 Not Found", Worker: 2}, got[1])
	assert.Equal(t, domain.FetchResult{Kind: domain.KindSuccess, Item: "C", Bytes: 30, Worker: 2}, got[2])
}

func TestWorkerUnwrapsTransferError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mirror := mocks.NewMockMirror(ctrl)
	mirror.EXPECT().Fetch(gomock.Any(), domain.RemoteItem("A")).
		Return(int64(0), &domain.TransferError{Item: "A", Err: errors.New("connection reset")})

	results := make(chan domain.FetchResult, 1)
	NewWorker(1, domain.JobChunk{Items: items("A")}, mirror, results, logger.Discard()).Run(context.Background())

	got := drain(results)
	require.Len(t, got, 1)
	assert.False(t, got[0].OK())
	assert.Equal(t, "connection reset", got[0].Message)
}

func TestWorkerKilledBeforeStartFetchesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No expectations: any call to Fetch fails the test
	mirror := mocks.NewMockMirror(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := make(chan domain.FetchResult, 2)
	n := NewWorker(1, domain.JobChunk{Items: items("A", "B")}, mirror, results, logger.Discard()).Run(ctx)

	assert.Zero(t, n)
	assert.Empty(t, drain(results))
}

func TestWorkerStopsAtNextItemAfterKill(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())

	mirror := mocks.NewMockMirror(ctrl)
	mirror.EXPECT().Fetch(gomock.Any(), domain.RemoteItem("A")).
		DoAndReturn(func(ctx context.Context, _ domain.RemoteItem) (int64, error) {
			cancel()
			return 5, nil
		})

	results := make(chan domain.FetchResult, 3)
	n := NewWorker(1, domain.JobChunk{Items: items("A", "B", "C")}, mirror, results, logger.Discard()).Run(ctx)

	assert.Equal(t, 1, n)
	got := drain(results)
	require.Len(t, got, 1)
	assert.Equal(t, domain.RemoteItem("A"), got[0].Item)
}

func TestWorkerRecoversFromMirrorPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mirror := mocks.NewMockMirror(ctrl)
	gomock.InOrder(
		mirror.EXPECT().Fetch(gomock.Any(), domain.RemoteItem("A")).
			DoAndReturn(func(context.Context, domain.RemoteItem) (int64, error) { panic("nil body") }),
		mirror.EXPECT().Fetch(gomock.Any(), domain.RemoteItem("B")).Return(int64(1), nil),
	)

	results := make(chan domain.FetchResult, 2)
	NewWorker(1, domain.JobChunk{Items: items("A", "B")}, mirror, results, logger.Discard()).Run(context.Background())

	got := drain(results)
	require.Len(t, got, 2)
	assert.False(t, got[0].OK())
	assert.Contains(t, got[0].Message, "nil body")
	assert.True(t, got[1].OK())
}
