package artify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/artify/database/mocks"
	"github.com/blnkfinance/artify/internal/apierror"
	"github.com/blnkfinance/artify/model"
)

const resultURL = "https://replicate.delivery/pbxt/out-0.png"

func TestStartGeneration_RejectsInvalidSource(t *testing.T) {
	a := newTestArtify(t, nil, new(mocks.MockDataSource), WithGenerator(&fakeGenerator{url: resultURL}))
	defer a.Close()

	sources := []string{
		"",
		"   ",
		"not a url",
		"ftp://example.com/a.jpg",
		"https://",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png;base64,",
		"data:image/png,rawbytes",
		"data:image/png;base64," + strings.Repeat("A", maxDataURILength),
	}
	for _, source := range sources {
		job, err := a.StartGeneration(context.Background(), GenerationRequest{SourceImage: source, StyleID: "ghibli"})
		assert.Nil(t, job, source)
		assert.True(t, apierror.Is(err, apierror.ErrInvalidInput), "expected invalid input for %q, got %v", source, err)
	}
}

func TestStartGeneration_MissingCredential(t *testing.T) {
	a := newTestArtify(t, nil, new(mocks.MockDataSource))
	defer a.Close()

	job, err := a.StartGeneration(context.Background(), GenerationRequest{SourceImage: "https://example.com/a.jpg"})
	assert.Nil(t, job)
	assert.True(t, apierror.Is(err, apierror.ErrConfiguration))
	assert.Equal(t, 500, apierror.MapErrorToHTTPStatus(err))
}

func TestValidateGeneration(t *testing.T) {
	unconfigured := newTestArtify(t, nil, new(mocks.MockDataSource))
	defer unconfigured.Close()
	configured := newTestArtify(t, nil, new(mocks.MockDataSource), WithGenerator(&fakeGenerator{url: resultURL}))
	defer configured.Close()

	req := GenerationRequest{SourceImage: "https://example.com/a.jpg", StyleID: "ghibli"}
	assert.NoError(t, configured.ValidateGeneration(req))
	assert.True(t, apierror.Is(unconfigured.ValidateGeneration(req), apierror.ErrConfiguration))
	assert.True(t, apierror.Is(configured.ValidateGeneration(GenerationRequest{}), apierror.ErrInvalidInput))
}

func TestStartGeneration_CompletesJob(t *testing.T) {
	ctx := context.Background()
	ds := new(mocks.MockDataSource)
	gen := &fakeGenerator{
		logs: []string{"Using seed: 1234", "10%|█         | 2/20 [00:01<00:09]", "55%|█████▌    | 11/20 [00:05<00:04]", "100%|██████████| 20/20 [00:09<00:00]"},
		url:  resultURL,
	}
	ds.On("UpsertGalleryImage", mock.Anything, mock.MatchedBy(func(image *model.GalleryImage) bool {
		return image.SourceURL == resultURL && image.Featured && image.Paid &&
			image.Style == "pixar" && image.CreatorID != nil && *image.CreatorID == "fid:42"
	})).Return(&model.GalleryImage{ID: "img_1", SourceURL: resultURL, Featured: true, Paid: true}, nil).Once()

	a := newTestArtify(t, nil, ds, WithGenerator(gen))
	job, err := a.StartGeneration(ctx, GenerationRequest{
		SourceImage: "https://example.com/a.jpg",
		StyleID:     "pixar",
		UserID:      "fid:42",
		Paid:        true,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(job.RequestID, "gen_"))
	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, 0, job.Progress)

	require.NoError(t, a.Close())

	for i := 0; i < 2; i++ {
		status, err := a.GenerationStatus(ctx, job.RequestID)
		require.NoError(t, err)
		assert.Equal(t, model.JobSucceeded, status.Status)
		assert.Equal(t, 100, status.Progress)
		require.NotNil(t, status.ResultURL)
		assert.Equal(t, resultURL, *status.ResultURL)
	}

	input := gen.lastInput()
	pixar := ResolveStyle("pixar", "")
	assert.Equal(t, "https://example.com/a.jpg", input.Image)
	assert.Equal(t, pixar.Prompt, input.Prompt)
	assert.Equal(t, pixar.PromptStrength, input.PromptStrength)
	ds.AssertExpectations(t)
}

func TestStartGeneration_UnknownStyleUsesDefault(t *testing.T) {
	ds := new(mocks.MockDataSource)
	ds.On("UpsertGalleryImage", mock.Anything, mock.Anything).Return(&model.GalleryImage{ID: "img_1"}, nil)
	gen := &fakeGenerator{url: resultURL}

	a := newTestArtify(t, nil, ds, WithGenerator(gen))
	job, err := a.StartGeneration(context.Background(), GenerationRequest{SourceImage: "https://example.com/a.jpg", StyleID: "baroque"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	assert.Equal(t, "ghibli", job.Style)
	assert.Equal(t, ResolveStyle("ghibli", "").Prompt, gen.lastInput().Prompt)
}

func TestStartGeneration_ProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	ds := new(mocks.MockDataSource)
	ds.On("UpsertGalleryImage", mock.Anything, mock.Anything).Return(&model.GalleryImage{ID: "img_1"}, nil)

	var (
		a        *Artify
		jobID    string
		observed []int
		ready    = make(chan struct{})
	)
	gen := &fakeGenerator{
		logs: []string{"20%|██ | 4/20", "80%|████████ | 16/20", "40%|████ | 8/20", "no percentage here", "100%|██████████| 20/20"},
		url:  resultURL,
	}
	gen.observe = func() {
		<-ready
		status, err := a.GenerationStatus(ctx, jobID)
		require.NoError(t, err)
		observed = append(observed, status.Progress)
	}

	a = newTestArtify(t, nil, ds, WithGenerator(gen))
	job, err := a.StartGeneration(ctx, GenerationRequest{SourceImage: "https://example.com/a.jpg", StyleID: "anime"})
	require.NoError(t, err)
	jobID = job.RequestID
	close(ready)
	require.NoError(t, a.Close())

	assert.Equal(t, []int{20, 80, 80, 80, 99}, observed)
	status, _ := a.GenerationStatus(ctx, jobID)
	assert.Equal(t, 100, status.Progress)
}

func TestStartGeneration_FailureIsSurfaced(t *testing.T) {
	ctx := context.Background()
	ds := new(mocks.MockDataSource)
	gen := &fakeGenerator{logs: []string{"30%|███ | 6/20"}, err: errProvider}

	a := newTestArtify(t, nil, ds, WithGenerator(gen))
	job, err := a.StartGeneration(ctx, GenerationRequest{SourceImage: "https://example.com/a.jpg"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	status, err := a.GenerationStatus(ctx, job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, status.Status)
	assert.Equal(t, 30, status.Progress)
	assert.Nil(t, status.ResultURL)
	assert.Contains(t, status.Error, "model returned no output")
	ds.AssertNotCalled(t, "UpsertGalleryImage", mock.Anything, mock.Anything)
}

func TestStartGeneration_RecoversFromPanic(t *testing.T) {
	ctx := context.Background()
	a := newTestArtify(t, nil, new(mocks.MockDataSource), WithGenerator(&fakeGenerator{panics: true}))
	job, err := a.StartGeneration(ctx, GenerationRequest{SourceImage: "https://example.com/a.jpg"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	status, _ := a.GenerationStatus(ctx, job.RequestID)
	assert.Equal(t, model.JobFailed, status.Status)
	assert.Contains(t, status.Error, "panicked")
}

func TestStartGeneration_PanicAfterSuccessKeepsResult(t *testing.T) {
	ctx := context.Background()
	ds := new(mocks.MockDataSource)
	ds.On("UpsertGalleryImage", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("driver exploded")
	}).Return(nil, nil)

	a := newTestArtify(t, nil, ds, WithGenerator(&fakeGenerator{url: resultURL}))
	job, err := a.StartGeneration(ctx, GenerationRequest{SourceImage: "https://example.com/a.jpg"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	status, _ := a.GenerationStatus(ctx, job.RequestID)
	assert.Equal(t, model.JobSucceeded, status.Status)
	assert.Empty(t, status.Error)
	require.NotNil(t, status.ResultURL)
	assert.Equal(t, resultURL, *status.ResultURL)
}

func TestStartGeneration_TimesOut(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Generation.Timeout = 50 * time.Millisecond

	a := newTestArtify(t, cfg, new(mocks.MockDataSource), WithGenerator(&fakeGenerator{block: true}))
	job, err := a.StartGeneration(ctx, GenerationRequest{SourceImage: "https://example.com/a.jpg"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	status, _ := a.GenerationStatus(ctx, job.RequestID)
	assert.Equal(t, model.JobFailed, status.Status)
	assert.Contains(t, status.Error, "timed out")
}

func TestStartGeneration_ArchivesResult(t *testing.T) {
	ctx := context.Background()
	ds := new(mocks.MockDataSource)
	ds.On("UpsertGalleryImage", mock.Anything, mock.MatchedBy(func(image *model.GalleryImage) bool {
		return strings.HasPrefix(image.SourceURL, "https://cdn.artify.test/generations/gen_")
	})).Return(&model.GalleryImage{ID: "img_1"}, nil)

	a := newTestArtify(t, nil, ds, WithGenerator(&fakeGenerator{url: resultURL}), WithArchiver(&fakeArchiver{}))
	job, err := a.StartGeneration(ctx, GenerationRequest{SourceImage: "https://example.com/a.jpg"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	status, _ := a.GenerationStatus(ctx, job.RequestID)
	require.NotNil(t, status.ResultURL)
	assert.Equal(t, "https://cdn.artify.test/generations/"+job.RequestID+".png", *status.ResultURL)
	ds.AssertExpectations(t)
}

func TestStartGeneration_ArchiveFailureKeepsProviderURL(t *testing.T) {
	ctx := context.Background()
	ds := new(mocks.MockDataSource)
	ds.On("UpsertGalleryImage", mock.Anything, mock.Anything).Return(&model.GalleryImage{ID: "img_1"}, nil)

	a := newTestArtify(t, nil, ds, WithGenerator(&fakeGenerator{url: resultURL}), WithArchiver(&fakeArchiver{err: errProvider}))
	job, err := a.StartGeneration(ctx, GenerationRequest{SourceImage: "https://example.com/a.jpg"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	status, _ := a.GenerationStatus(ctx, job.RequestID)
	assert.Equal(t, model.JobSucceeded, status.Status)
	require.NotNil(t, status.ResultURL)
	assert.Equal(t, resultURL, *status.ResultURL)
}

func TestStartGeneration_GalleryFailureKeepsResult(t *testing.T) {
	ctx := context.Background()
	ds := new(mocks.MockDataSource)
	ds.On("UpsertGalleryImage", mock.Anything, mock.Anything).
		Return(nil, apierror.NewAPIError(apierror.ErrInvalidInput, "bad image", nil)).Once()

	a := newTestArtify(t, nil, ds, WithGenerator(&fakeGenerator{url: resultURL}))
	job, err := a.StartGeneration(ctx, GenerationRequest{SourceImage: "https://example.com/a.jpg"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	status, _ := a.GenerationStatus(ctx, job.RequestID)
	assert.Equal(t, model.JobSucceeded, status.Status)
	assert.Equal(t, 100, status.Progress)
	ds.AssertNumberOfCalls(t, "UpsertGalleryImage", 1)
}

func TestStartGeneration_UniqueRequestIDs(t *testing.T) {
	ds := new(mocks.MockDataSource)
	ds.On("UpsertGalleryImage", mock.Anything, mock.Anything).Return(&model.GalleryImage{ID: "img_1"}, nil)
	a := newTestArtify(t, nil, ds, WithGenerator(&fakeGenerator{url: resultURL}))

	var (
		mu  sync.Mutex
		ids = map[string]bool{}
		wg  sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := a.StartGeneration(context.Background(), GenerationRequest{SourceImage: "https://example.com/a.jpg"})
			require.NoError(t, err)
			mu.Lock()
			ids[job.RequestID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.NoError(t, a.Close())
	assert.Len(t, ids, 50)
}

func TestGenerationStatus_UnknownID(t *testing.T) {
	a := newTestArtify(t, nil, new(mocks.MockDataSource))
	defer a.Close()

	status, err := a.GenerationStatus(context.Background(), "gen_unknown")
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, status.Status)
	assert.Equal(t, 0, status.Progress)
	assert.Nil(t, status.ResultURL)
}
