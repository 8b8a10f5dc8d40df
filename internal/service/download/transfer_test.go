package download

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oshokin/trackvault/internal/client/catalog"
	mock_catalog "github.com/oshokin/trackvault/internal/client/catalog/mocks"
	"github.com/oshokin/trackvault/internal/service/sink"
	mock_sink "github.com/oshokin/trackvault/internal/service/sink/mocks"
)

type transferFixture struct {
	client   *mock_catalog.MockClient
	sink     *sink.FileSink
	tempDir  string
	executor *TransferExecutorImpl
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	client := mock_catalog.NewMockClient(ctrl)

	fileSink, err := sink.NewFileSink(filepath.Join(t.TempDir(), "music"), nil)
	require.NoError(t, err)

	tempDir := filepath.Join(t.TempDir(), "temp")

	executor, err := NewTransferExecutor(&TransferOptions{
		Client:  client,
		Sink:    fileSink,
		TempDir: tempDir,
	})
	require.NoError(t, err)

	return &transferFixture{
		client:   client,
		sink:     fileSink,
		tempDir:  tempDir,
		executor: executor.(*TransferExecutorImpl), //nolint:forcetypeassert // Constructor returns the implementation.
	}
}

// assertNoLeftovers checks that no temporary file outlived the transfer.
func (f *transferFixture) assertNoLeftovers(t *testing.T) {
	t.Helper()

	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (f *transferFixture) committedFiles(t *testing.T) []os.DirEntry {
	t.Helper()

	entries, err := os.ReadDir(f.sink.OutputPath())
	require.NoError(t, err)

	return entries
}

func fetchResult(body io.Reader, offset, contentLength, total int64) *catalog.FetchStreamResult {
	return &catalog.FetchStreamResult{
		Body:          io.NopCloser(body),
		Offset:        offset,
		ContentLength: contentLength,
		TotalBytes:    total,
		MimeType:      "audio/mpeg",
		StatusCode:    206,
	}
}

// droppingReader returns its content and then fails like a dropped connection.
type droppingReader struct {
	content *strings.Reader
}

func (r *droppingReader) Read(p []byte) (int, error) {
	n, err := r.content.Read(p)
	if errors.Is(err, io.EOF) {
		return n, io.ErrUnexpectedEOF
	}

	return n, err
}

func dropAfter(content string) io.Reader {
	return &droppingReader{content: strings.NewReader(content)}
}

// cancellingReader cancels a context on its first read.
type cancellingReader struct {
	cancel context.CancelFunc
}

func (r *cancellingReader) Read(p []byte) (int, error) {
	r.cancel()

	return copy(p, "abcd"), nil
}

func songRequest() *TransferRequest {
	return &TransferRequest{
		Track: &Track{ID: "t1", Title: "Song", Artist: "Band"},
		URL:   "https://cdn/t1",
	}
}

// TestTransfer_Success tests a transfer committed in one connection.
func TestTransfer_Success(t *testing.T) {
	t.Parallel()

	f := newTransferFixture(t)

	f.client.EXPECT().FetchStream(gomock.Any(), "https://cdn/t1", int64(0)).
		Return(fetchResult(strings.NewReader("0123456789"), 0, 10, 10), nil)

	var last progressCall

	result, err := f.executor.Transfer(context.Background(), songRequest(), func(downloaded, total int64) {
		last = progressCall{downloaded, total}
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), result.Bytes)
	assert.Equal(t, progressCall{10, 10}, last)
	assert.Equal(t, ".mp3", filepath.Ext(result.Ref))

	content, err := os.ReadFile(result.Ref)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(content))

	f.assertNoLeftovers(t)
}

// TestTransfer_Resume tests that a dropped connection continues at the written offset.
func TestTransfer_Resume(t *testing.T) {
	t.Parallel()

	f := newTransferFixture(t)

	gomock.InOrder(
		f.client.EXPECT().FetchStream(gomock.Any(), "https://cdn/t1", int64(0)).
			Return(fetchResult(dropAfter("abcd"), 0, 10, 10), nil),
		f.client.EXPECT().FetchStream(gomock.Any(), "https://cdn/t1", int64(4)).
			Return(fetchResult(strings.NewReader("efghij"), 4, 6, 10), nil),
	)

	result, err := f.executor.Transfer(context.Background(), songRequest(), nil)
	require.NoError(t, err)

	content, err := os.ReadFile(result.Ref)
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij", string(content))

	f.assertNoLeftovers(t)
}

// TestTransfer_ResumeAtEnd tests that a drop after the last byte is not a failure.
func TestTransfer_ResumeAtEnd(t *testing.T) {
	t.Parallel()

	f := newTransferFixture(t)

	gomock.InOrder(
		f.client.EXPECT().FetchStream(gomock.Any(), "https://cdn/t1", int64(0)).
			Return(fetchResult(dropAfter("0123456789"), 0, 10, 10), nil),
		f.client.EXPECT().FetchStream(gomock.Any(), "https://cdn/t1", int64(10)).
			Return(nil, catalog.ErrRangeNotSatisfiable),
	)

	result, err := f.executor.Transfer(context.Background(), songRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.Bytes)
}

// TestTransfer_Failures tests that failed transfers leave neither temporary nor committed files.
func TestTransfer_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(client *mock_catalog.MockClient)
		wantErr error
	}{
		{
			name: "Empty body",
			setup: func(client *mock_catalog.MockClient) {
				client.EXPECT().FetchStream(gomock.Any(), gomock.Any(), int64(0)).
					Return(fetchResult(strings.NewReader(""), 0, 0, 0), nil)
			},
			wantErr: ErrEmptyDownload,
		},
		{
			name: "Short body",
			setup: func(client *mock_catalog.MockClient) {
				client.EXPECT().FetchStream(gomock.Any(), gomock.Any(), int64(0)).
					Return(fetchResult(strings.NewReader("abcd"), 0, 4, 10), nil)
			},
			wantErr: ErrIncompleteDownload,
		},
		{
			name: "Range ignored on resume",
			setup: func(client *mock_catalog.MockClient) {
				gomock.InOrder(
					client.EXPECT().FetchStream(gomock.Any(), gomock.Any(), int64(0)).
						Return(fetchResult(dropAfter("abcd"), 0, 10, 10), nil),
					client.EXPECT().FetchStream(gomock.Any(), gomock.Any(), int64(4)).
						Return(fetchResult(strings.NewReader("abcdefghij"), 0, 10, 10), nil),
				)
			},
			wantErr: ErrResumeNotSupported,
		},
		{
			name: "Resumes exhausted",
			setup: func(client *mock_catalog.MockClient) {
				client.EXPECT().FetchStream(gomock.Any(), gomock.Any(), int64(0)).
					DoAndReturn(func(context.Context, string, int64) (*catalog.FetchStreamResult, error) {
						return fetchResult(dropAfter(""), 0, 10, 10), nil
					}).
					Times(maxResumeAttempts + 1)
			},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name: "Upstream error",
			setup: func(client *mock_catalog.MockClient) {
				client.EXPECT().FetchStream(gomock.Any(), gomock.Any(), int64(0)).
					Return(nil, catalog.ErrUnexpectedHTTPStatus)
			},
			wantErr: catalog.ErrUnexpectedHTTPStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newTransferFixture(t)
			tt.setup(f.client)

			result, err := f.executor.Transfer(context.Background(), songRequest(), nil)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)

			f.assertNoLeftovers(t)
			assert.Empty(t, f.committedFiles(t))
		})
	}
}

// TestTransfer_Cancelled tests that a cancelled transfer stops and cleans up.
func TestTransfer_Cancelled(t *testing.T) {
	t.Parallel()

	f := newTransferFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.client.EXPECT().FetchStream(gomock.Any(), gomock.Any(), int64(0)).
		Return(fetchResult(&cancellingReader{cancel: cancel}, 0, 0, 0), nil)

	_, err := f.executor.Transfer(ctx, songRequest(), nil)
	require.ErrorIs(t, err, context.Canceled)

	f.assertNoLeftovers(t)
	assert.Empty(t, f.committedFiles(t))
}

// TestTransfer_CancelledDuringCommit tests that a file committed after cancellation is deleted.
func TestTransfer_CancelledDuringCommit(t *testing.T) {
	t.Parallel()

	var (
		ctrl        = gomock.NewController(t)
		client      = mock_catalog.NewMockClient(ctrl)
		mockSink    = mock_sink.NewMockSink(ctrl)
		tempDir     = t.TempDir()
		ctx, cancel = context.WithCancel(context.Background())
	)

	defer cancel()

	executor, err := NewTransferExecutor(&TransferOptions{Client: client, Sink: mockSink, TempDir: tempDir})
	require.NoError(t, err)

	client.EXPECT().FetchStream(gomock.Any(), gomock.Any(), int64(0)).
		Return(fetchResult(strings.NewReader("abc"), 0, 3, 3), nil)
	mockSink.EXPECT().Commit(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tempPath string, meta *sink.Metadata) (string, error) {
			assert.FileExists(t, tempPath)
			assert.Equal(t, "t1", meta.TrackID)
			assert.Equal(t, "audio/mpeg", meta.MimeType)
			cancel()

			return "/music/Band - Song.mp3", nil
		})
	mockSink.EXPECT().Delete(gomock.Any(), "/music/Band - Song.mp3").Return(nil)

	_, err = executor.Transfer(ctx, songRequest(), nil)
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestTransfer_ProgressThrottled tests that progress is reported in steps, then once at the end.
func TestTransfer_ProgressThrottled(t *testing.T) {
	t.Parallel()

	f := newTransferFixture(t)

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.executor.now = func() time.Time { return fixed }

	const size = 2 * progressBytesStep

	f.client.EXPECT().FetchStream(gomock.Any(), gomock.Any(), int64(0)).
		Return(fetchResult(strings.NewReader(strings.Repeat("x", size)), 0, size, size), nil)

	var calls []progressCall

	_, err := f.executor.Transfer(context.Background(), songRequest(), func(downloaded, total int64) {
		calls = append(calls, progressCall{downloaded, total})
	})
	require.NoError(t, err)

	assert.Equal(t, []progressCall{
		{progressBytesStep, size},
		{size, size},
		{size, size},
	}, calls)
}

// TestTransfer_InvalidRequest tests requests without a track id.
func TestTransfer_InvalidRequest(t *testing.T) {
	t.Parallel()

	f := newTransferFixture(t)

	_, err := f.executor.Transfer(context.Background(), &TransferRequest{Track: &Track{}}, nil)
	require.ErrorIs(t, err, ErrEmptyTrackID)

	_, err = f.executor.Transfer(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrEmptyTrackID)
}
