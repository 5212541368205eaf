package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lk2023060901/course-content-backend/internal/content/types"
	"github.com/lk2023060901/course-content-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

// fakeCatalog 基于内存 map 的 CatalogStore
type fakeCatalog struct {
	mu      sync.Mutex
	records map[string]*FileRecord

	failCreate    error
	failFindDonor error
	failIncrement error
	failDecrement error
	failDelete    error
	failList      error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{records: make(map[string]*FileRecord)}
}

func (f *fakeCatalog) Create(ctx context.Context, rec *FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeCatalog) GetByID(ctx context.Context, id string) (*FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeCatalog) FindDonor(ctx context.Context, fingerprint string) (*FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFindDonor != nil {
		return nil, f.failFindDonor
	}
	for _, rec := range f.records {
		if rec.ContentFingerprint == fingerprint &&
			rec.VectorStatus == types.VectorStatusIndexed &&
			rec.OriginalFileID == "" {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) IncrementReference(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIncrement != nil {
		return f.failIncrement
	}
	rec, ok := f.records[id]
	if !ok {
		return fmt.Errorf("record not found: %s", id)
	}
	rec.ReferenceCount++
	return nil
}

func (f *fakeCatalog) DecrementReference(ctx context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDecrement != nil {
		return 0, f.failDecrement
	}
	rec, ok := f.records[id]
	if !ok {
		return 0, fmt.Errorf("record not found: %s", id)
	}
	if rec.ReferenceCount <= 0 {
		return 0, fmt.Errorf("reference count already zero: %s", id)
	}
	rec.ReferenceCount--
	return rec.ReferenceCount, nil
}

func (f *fakeCatalog) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.records, id)
	return nil
}

func (f *fakeCatalog) UpdateVectorStatus(ctx context.Context, id string, status types.VectorStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return fmt.Errorf("record not found: %s", id)
	}
	rec.VectorStatus = status
	return nil
}

func (f *fakeCatalog) UpdateParseResult(ctx context.Context, id, parsedContent, markdownContent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return fmt.Errorf("record not found: %s", id)
	}
	rec.ParsedContent = parsedContent
	rec.MarkdownContent = markdownContent
	return nil
}

func (f *fakeCatalog) ListByCourse(ctx context.Context, organizationID, courseID string) ([]*FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	var out []*FileRecord
	for _, rec := range f.records {
		if rec.OrganizationID == organizationID && rec.CourseID == courseID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCatalog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeVectors 基于内存 map 的 VectorIndex
type fakeVectors struct {
	mu     sync.Mutex
	points map[string]*VectorPoint

	denseHits  []*SearchHit
	sparseHits []*SearchHit

	failUpsert error
	failScroll error
	failDelete error
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{points: make(map[string]*VectorPoint)}
}

func (f *fakeVectors) Upsert(ctx context.Context, points []*VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert != nil {
		return f.failUpsert
	}
	for _, p := range points {
		cp := *p
		f.points[p.ID] = &cp
	}
	return nil
}

func (f *fakeVectors) ScrollByDocument(ctx context.Context, documentID, afterID string, limit int) ([]*VectorPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failScroll != nil {
		return nil, f.failScroll
	}
	var all []*VectorPoint
	for _, p := range f.points {
		if p.DocumentID == documentID && p.ID > afterID {
			cp := *p
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeVectors) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.points {
		if p.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func (f *fakeVectors) DeleteByDocumentAndCourse(ctx context.Context, documentID, courseID string) (int64, error) {
	return f.deleteWhere(func(p *VectorPoint) bool {
		return p.DocumentID == documentID && p.CourseID == courseID
	})
}

func (f *fakeVectors) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	return f.deleteWhere(func(p *VectorPoint) bool { return p.DocumentID == documentID })
}

func (f *fakeVectors) DeleteByCourse(ctx context.Context, courseID string) (int64, error) {
	return f.deleteWhere(func(p *VectorPoint) bool { return p.CourseID == courseID })
}

func (f *fakeVectors) deleteWhere(match func(*VectorPoint) bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return 0, f.failDelete
	}
	var n int64
	for id, p := range f.points {
		if match(p) {
			delete(f.points, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeVectors) SearchDense(ctx context.Context, courseID string, vector []float32, topK int) ([]*SearchHit, error) {
	return f.denseHits, nil
}

func (f *fakeVectors) SearchSparse(ctx context.Context, courseID string, vector map[uint32]float32, topK int) ([]*SearchHit, error) {
	return f.sparseHits, nil
}

func (f *fakeVectors) countAll() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func (f *fakeVectors) get(id string) *VectorPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.points[id]
}

// fakeBlobs 基于内存 map 的 BlobStore
type fakeBlobs struct {
	mu    sync.Mutex
	files map[string][]byte
	reads int

	failSave   error
	failRead   error
	failDelete error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{files: make(map[string][]byte)}
}

func (f *fakeBlobs) Save(ctx context.Context, organizationID, courseID, filename string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return "", f.failSave
	}
	path := organizationID + "/" + courseID + "/" + filename
	f.files[path] = append([]byte(nil), data...)
	return path, nil
}

func (f *fakeBlobs) Read(ctx context.Context, storagePath string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failRead != nil {
		return nil, f.failRead
	}
	data, ok := f.files[storagePath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", storagePath)
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeBlobs) Delete(ctx context.Context, storagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.files, storagePath)
	return nil
}

func (f *fakeBlobs) DeleteCourseDir(ctx context.Context, organizationID, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	prefix := organizationID + "/" + courseID + "/"
	for path := range f.files {
		if strings.HasPrefix(path, prefix) {
			delete(f.files, path)
		}
	}
	return nil
}

func (f *fakeBlobs) exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok
}

// fakeQuotaStore 基于内存 map 的 QuotaStore
type fakeQuotaStore struct {
	mu    sync.Mutex
	used  map[string]int64
	quota map[string]int64

	failApply error
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{used: make(map[string]int64), quota: make(map[string]int64)}
}

func (f *fakeQuotaStore) ApplyDelta(ctx context.Context, organizationID string, delta int64) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failApply != nil {
		return 0, 0, f.failApply
	}
	quota, ok := f.quota[organizationID]
	if !ok {
		return 0, 0, ErrQuotaNotConfigured
	}
	f.used[organizationID] += delta
	return f.used[organizationID], quota, nil
}

func (f *fakeQuotaStore) EnsureOrganization(ctx context.Context, organizationID string, defaultQuotaBytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.quota[organizationID]; !ok {
		f.quota[organizationID] = defaultQuotaBytes
		f.used[organizationID] = 0
	}
	return nil
}

func (f *fakeQuotaStore) usedBytes(organizationID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used[organizationID]
}

// fakeCache 基于内存 set 的 Cache
type fakeCache struct {
	mu   sync.Mutex
	keys map[string]struct{}

	failDelete error
}

func newFakeCache() *fakeCache {
	return &fakeCache{keys: make(map[string]struct{})}
}

func (f *fakeCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return 0, f.failDelete
	}
	var n int64
	for k := range f.keys {
		if strings.HasPrefix(k, prefix) {
			delete(f.keys, k)
			n++
		}
	}
	return n, nil
}

// fakeChunkStore 基于内存切片的 ChunkCacheStore
type fakeChunkStore struct {
	mu      sync.Mutex
	entries []*ChunkCacheEntry

	failBatch  error
	failDelete error
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{}
}

func (f *fakeChunkStore) BatchCreate(ctx context.Context, entries []*ChunkCacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch != nil {
		return f.failBatch
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeChunkStore) DeleteByCourse(ctx context.Context, courseID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return 0, f.failDelete
	}
	var kept []*ChunkCacheEntry
	var n int64
	for _, e := range f.entries {
		if e.CourseID == courseID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return n, nil
}

// fakeParseCache 基于内存 map 的 ParseCache
type fakeParseCache struct {
	mu      sync.Mutex
	parsed  map[string][2]string
	deleted []string

	failStore  error
	failDelete error
}

func newFakeParseCache() *fakeParseCache {
	return &fakeParseCache{parsed: make(map[string][2]string)}
}

func (f *fakeParseCache) Store(storagePath, parsedContent, markdownContent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStore != nil {
		return f.failStore
	}
	f.parsed[storagePath] = [2]string{parsedContent, markdownContent}
	return nil
}

func (f *fakeParseCache) Load(storagePath string) (string, string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.parsed[storagePath]
	if !ok {
		return "", "", false, nil
	}
	return v[0], v[1], true, nil
}

func (f *fakeParseCache) Delete(storagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.parsed, storagePath)
	f.deleted = append(f.deleted, storagePath)
	return nil
}

// fakeProcessor 固定输出的 DocumentProcessor，记录最近一次输入
type fakeProcessor struct {
	output       *ParseOutput
	err          error
	lastData     []byte
	lastFileType string
}

func (f *fakeProcessor) Process(ctx context.Context, data []byte, fileType string) (*ParseOutput, error) {
	f.lastData = data
	f.lastFileType = fileType
	if f.err != nil {
		return nil, f.err
	}
	out := *f.output
	return &out, nil
}

// fakeEmbedder 生成固定维度向量的 EmbeddingService
type fakeEmbedder struct {
	dim        int
	withSparse bool
	err        error
}

func (f *fakeEmbedder) vector(seed int) []float32 {
	dim := f.dim
	if dim == 0 {
		dim = 4
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(seed+i) * 0.1
	}
	return v
}

func (f *fakeEmbedder) EmbedChunks(ctx context.Context, texts []string) ([][]float32, []map[uint32]float32, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	dense := make([][]float32, len(texts))
	var sparse []map[uint32]float32
	if f.withSparse {
		sparse = make([]map[uint32]float32, len(texts))
	}
	for i := range texts {
		dense[i] = f.vector(i)
		if f.withSparse {
			sparse[i] = map[uint32]float32{uint32(i): 1.0}
		}
	}
	return dense, sparse, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, map[uint32]float32, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	if f.withSparse {
		return f.vector(0), map[uint32]float32{0: 1.0}, nil
	}
	return f.vector(0), nil, nil
}
