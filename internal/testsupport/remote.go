package testsupport

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"shotsync/internal/project"
	"shotsync/internal/remote"
	"shotsync/internal/services"
)

// FakeRecords is an in-memory remote.RecordService with call counters and
// injectable failures.
type FakeRecords struct {
	mu      sync.Mutex
	records map[string]*project.Data

	CreateErr error
	SaveErr   error
	GetErr    error
	ListErr   error

	Creates int
	Saves   int
	Gets    int
	Deletes int
}

var _ remote.RecordService = (*FakeRecords)(nil)

func NewFakeRecords() *FakeRecords {
	return &FakeRecords{records: make(map[string]*project.Data)}
}

// Put seeds a record directly.
func (f *FakeRecords) Put(data *project.Data) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[data.ID] = data.Clone()
}

// Record returns a copy of the stored record, or nil.
func (f *FakeRecords) Record(projectID string) *project.Data {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[projectID]; ok {
		return rec.Clone()
	}
	return nil
}

// SetErrors replaces the injected failures under the lock.
func (f *FakeRecords) SetErrors(create, save, get error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateErr, f.SaveErr, f.GetErr = create, save, get
}

// Counts returns creates, saves, and gets.
func (f *FakeRecords) Counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Creates, f.Saves, f.Gets
}

func (f *FakeRecords) CreateRecord(_ context.Context, projectID, name, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Creates++
	if f.CreateErr != nil {
		return f.CreateErr
	}
	if _, ok := f.records[projectID]; ok {
		return remote.ErrRecordExists
	}
	f.records[projectID] = &project.Data{
		SchemaVersion: project.SchemaVersion,
		ID:            projectID,
		Name:          name,
		Description:   description,
		Pages:         map[string]project.Page{},
		Shots:         map[string]project.Shot{},
		LastModified:  time.Now().UTC(),
	}
	return nil
}

func (f *FakeRecords) GetRecord(_ context.Context, projectID string) (*project.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gets++
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	rec, ok := f.records[projectID]
	if !ok {
		return nil, remote.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (f *FakeRecords) SaveRecord(_ context.Context, projectID string, data *project.Data) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Saves++
	if f.SaveErr != nil {
		return f.SaveErr
	}
	existing, ok := f.records[projectID]
	if !ok {
		return remote.ErrRecordNotFound
	}
	if err := remote.CheckSave(existing, data); err != nil {
		return err
	}
	out := data.Clone()
	out.ID = projectID
	f.records[projectID] = out
	return nil
}

func (f *FakeRecords) ListRecords(context.Context) ([]remote.RecordSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]remote.RecordSummary, 0, len(f.records))
	for id, rec := range f.records {
		out = append(out, remote.RecordSummary{ID: id, Name: rec.Name, ShotCount: rec.ShotCount(), LastModified: rec.LastModified})
	}
	slices.SortFunc(out, func(a, b remote.RecordSummary) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (f *FakeRecords) DeleteRecord(_ context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletes++
	delete(f.records, projectID)
	return nil
}

// ErrInjectedUpload is returned by FakeBlobs when a failure was requested
// without a specific error.
var ErrInjectedUpload = errors.New("injected upload failure")

// FakeBlobs is an in-memory remote.BlobStore.
type FakeBlobs struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	unreachable bool
	failNext    int
	failAlways  bool
	failErr     error
	downloadErr map[string]error
	block       chan struct{}

	Uploads   int
	Downloads int
	Deletes   int
	Pings     int
}

var _ remote.BlobStore = (*FakeBlobs)(nil)

func NewFakeBlobs() *FakeBlobs {
	return &FakeBlobs{blobs: make(map[string][]byte), downloadErr: make(map[string]error)}
}

// SetReachable toggles Ping and every transfer between success and
// services.ErrNetworkUnavailable.
func (f *FakeBlobs) SetReachable(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable = !ok
}

// FailUploads makes the next n uploads fail with err (ErrInjectedUpload when nil).
// A negative n fails every upload until reset with FailUploads(0, nil).
func (f *FakeBlobs) FailUploads(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = ErrInjectedUpload
	}
	f.failErr = err
	f.failAlways = n < 0
	f.failNext = max(n, 0)
}

// FailDownload makes Download of url fail with err.
func (f *FakeBlobs) FailDownload(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadErr[url] = err
}

// BlockUploads makes uploads wait until the returned release func is called
// or the upload context ends.
func (f *FakeBlobs) BlockUploads() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.block = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			close(ch)
		})
	}
}

// Put seeds an asset and returns its URL.
func (f *FakeBlobs) Put(projectID, assetKey string, data []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := blobURL(projectID, assetKey)
	f.blobs[url] = slices.Clone(data)
	return url
}

// Has reports whether url is stored.
func (f *FakeBlobs) Has(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[url]
	return ok
}

// UploadCount returns the number of Upload calls.
func (f *FakeBlobs) UploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Uploads
}

func (f *FakeBlobs) Upload(ctx context.Context, projectID, assetKey string, data []byte) (string, error) {
	f.mu.Lock()
	f.Uploads++
	block := f.block
	if f.unreachable {
		f.mu.Unlock()
		return "", services.ErrNetworkUnavailable
	}
	if f.failAlways || f.failNext > 0 {
		if f.failNext > 0 {
			f.failNext--
		}
		err := f.failErr
		f.mu.Unlock()
		return "", err
	}
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.Put(projectID, assetKey, data), nil
}

func (f *FakeBlobs) Download(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Downloads++
	if f.unreachable {
		return nil, services.ErrNetworkUnavailable
	}
	if err := f.downloadErr[url]; err != nil {
		return nil, err
	}
	data, ok := f.blobs[url]
	if !ok {
		return nil, remote.ErrAssetNotFound
	}
	return slices.Clone(data), nil
}

func (f *FakeBlobs) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletes++
	if f.unreachable {
		return services.ErrNetworkUnavailable
	}
	delete(f.blobs, url)
	return nil
}

func (f *FakeBlobs) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pings++
	if f.unreachable {
		return services.ErrNetworkUnavailable
	}
	return nil
}

func blobURL(projectID, assetKey string) string {
	return fmt.Sprintf("mem://%s/%s", projectID, assetKey)
}
