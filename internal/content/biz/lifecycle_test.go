package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lk2023060901/course-content-backend/internal/content/hasher"
	"github.com/lk2023060901/course-content-backend/internal/content/types"
)

type lifecycleFixture struct {
	catalog *fakeCatalog
	vectors *fakeVectors
	blobs   *fakeBlobs
	quota   *fakeQuotaStore
	uc      *ContentUseCase
}

func newLifecycleFixture() *lifecycleFixture {
	catalog := newFakeCatalog()
	vectors := newFakeVectors()
	blobs := newFakeBlobs()
	quota := newFakeQuotaStore()
	quota.quota["org-1"] = 1 << 30
	uc := NewContentUseCase(catalog, vectors, blobs,
		NewQuotaLedger(quota, testLogger()),
		&fakeEmbedder{}, testLogger())
	return &lifecycleFixture{catalog: catalog, vectors: vectors, blobs: blobs, quota: quota, uc: uc}
}

// seedIndexedOriginal 植入一条已索引的原始记录及其向量点
func (fx *lifecycleFixture) seedIndexedOriginal(t *testing.T, id, courseID string, data []byte, chunkCount int) *FileRecord {
	t.Helper()
	ctx := context.Background()
	path, err := fx.blobs.Save(ctx, "org-1", courseID, id+".pdf", data)
	if err != nil {
		t.Fatalf("failed to seed blob: %v", err)
	}
	rec := &FileRecord{
		ID:                 id,
		OrganizationID:     "org-1",
		CourseID:           courseID,
		Filename:           id + ".pdf",
		FileType:           "pdf",
		FileSize:           int64(len(data)),
		ContentFingerprint: hasher.Fingerprint(data),
		StoragePath:        path,
		ReferenceCount:     1,
		VectorStatus:       types.VectorStatusIndexed,
		ParsedContent:      "parsed",
		MarkdownContent:    "# parsed",
	}
	if err := fx.catalog.Create(ctx, rec); err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}
	points := make([]*VectorPoint, chunkCount)
	for i := 0; i < chunkCount; i++ {
		chunkID := fmt.Sprintf("chunk-%03d", i)
		points[i] = &VectorPoint{
			ID:             PointID(id, chunkID),
			DocumentID:     id,
			CourseID:       courseID,
			OrganizationID: "org-1",
			ChunkID:        chunkID,
			Content:        fmt.Sprintf("content %d", i),
			Dense:          []float32{0.1, 0.2, 0.3},
			Sparse:         map[uint32]float32{uint32(i): 0.5},
		}
	}
	if err := fx.vectors.Upsert(ctx, points); err != nil {
		t.Fatalf("failed to seed vectors: %v", err)
	}
	if _, _, err := fx.quota.ApplyDelta(ctx, "org-1", rec.FileSize); err != nil {
		t.Fatalf("failed to seed quota: %v", err)
	}
	return rec
}

func TestHandleUploadEmptyData(t *testing.T) {
	fx := newLifecycleFixture()
	_, err := fx.uc.HandleUpload(context.Background(), nil, &UploadMeta{OrganizationID: "org-1"})
	if !errors.Is(err, ErrEmptyUpload) {
		t.Errorf("Expected ErrEmptyUpload, got %v", err)
	}
}

func TestHandleUploadNewContent(t *testing.T) {
	fx := newLifecycleFixture()
	ctx := context.Background()
	data := []byte("brand new course material")

	result, err := fx.uc.HandleUpload(ctx, data, &UploadMeta{
		Filename:       "lecture.pdf",
		OrganizationID: "org-1",
		CourseID:       "course-a",
		MimeType:       "application/pdf",
	})
	if err != nil {
		t.Fatalf("HandleUpload failed: %v", err)
	}

	if result.Deduplicated {
		t.Error("Expected non-deduplicated result for new content")
	}
	if result.VectorStatus != types.VectorStatusPending {
		t.Errorf("Expected pending status, got %s", result.VectorStatus)
	}

	rec, _ := fx.catalog.GetByID(ctx, result.FileID)
	if rec == nil {
		t.Fatal("Expected file record to exist")
	}
	if rec.ReferenceCount != 1 {
		t.Errorf("Expected reference count 1, got %d", rec.ReferenceCount)
	}
	if !rec.IsOriginal() {
		t.Error("Expected record to be original")
	}
	if rec.ContentFingerprint != hasher.Fingerprint(data) {
		t.Error("Fingerprint mismatch")
	}
	if rec.FileType != "pdf" {
		t.Errorf("Expected file type pdf, got %s", rec.FileType)
	}
	if !fx.blobs.exists(rec.StoragePath) {
		t.Error("Expected physical file to be stored")
	}
	if used := fx.quota.usedBytes("org-1"); used != int64(len(data)) {
		t.Errorf("Expected quota usage %d, got %d", len(data), used)
	}
}

func TestHandleUploadDeduplicated(t *testing.T) {
	fx := newLifecycleFixture()
	ctx := context.Background()
	data := []byte("shared textbook chapter")
	donor := fx.seedIndexedOriginal(t, "donor-1", "course-a", data, 3)

	result, err := fx.uc.HandleUpload(ctx, data, &UploadMeta{
		Filename:       "copy.pdf",
		OrganizationID: "org-1",
		CourseID:       "course-b",
		MimeType:       "application/pdf",
	})
	if err != nil {
		t.Fatalf("HandleUpload failed: %v", err)
	}

	if !result.Deduplicated {
		t.Fatal("Expected deduplicated result")
	}
	if result.OriginalFileID != donor.ID {
		t.Errorf("Expected original file ID %s, got %s", donor.ID, result.OriginalFileID)
	}
	if result.VectorStatus != types.VectorStatusIndexed {
		t.Errorf("Expected indexed status, got %s", result.VectorStatus)
	}
	if result.VectorsDuplicated != 3 {
		t.Errorf("Expected 3 duplicated vectors, got %d", result.VectorsDuplicated)
	}

	// 原始记录引用计数升到 2
	donorRec, _ := fx.catalog.GetByID(ctx, donor.ID)
	if donorRec.ReferenceCount != 2 {
		t.Errorf("Expected donor reference count 2, got %d", donorRec.ReferenceCount)
	}

	// 新记录共享存储路径，不触发新的物理写入
	dup, _ := fx.catalog.GetByID(ctx, result.FileID)
	if dup.StoragePath != donor.StoragePath {
		t.Error("Expected duplicate to share donor storage path")
	}
	if dup.ParsedContent != donor.ParsedContent {
		t.Error("Expected duplicate to inherit parsed content")
	}

	// 向量点改写了归属标签但共享向量数据
	point := fx.vectors.get(PointID(result.FileID, "chunk-000"))
	if point == nil {
		t.Fatal("Expected duplicated vector point to exist")
	}
	if point.CourseID != "course-b" {
		t.Errorf("Expected course-b, got %s", point.CourseID)
	}
	if point.DocumentID != result.FileID {
		t.Errorf("Expected document ID %s, got %s", result.FileID, point.DocumentID)
	}
	donorPoint := fx.vectors.get(PointID(donor.ID, "chunk-000"))
	if donorPoint == nil {
		t.Fatal("Expected donor vector point to survive")
	}
	if len(point.Dense) != len(donorPoint.Dense) {
		t.Error("Expected dense vector to be copied verbatim")
	}

	// 去重不减免配额
	expected := donor.FileSize + int64(len(data))
	if used := fx.quota.usedBytes("org-1"); used != expected {
		t.Errorf("Expected quota usage %d, got %d", expected, used)
	}
}

func TestHandleUploadFallbackWhenDonorHasNoVectors(t *testing.T) {
	fx := newLifecycleFixture()
	ctx := context.Background()
	data := []byte("indexed but vectorless")
	donor := fx.seedIndexedOriginal(t, "donor-empty", "course-a", data, 0)

	result, err := fx.uc.HandleUpload(ctx, data, &UploadMeta{
		Filename:       "again.pdf",
		OrganizationID: "org-1",
		CourseID:       "course-b",
	})
	if err != nil {
		t.Fatalf("HandleUpload failed: %v", err)
	}

	if result.Deduplicated {
		t.Error("Expected fallback to normal upload")
	}
	if result.VectorStatus != types.VectorStatusPending {
		t.Errorf("Expected pending status after fallback, got %s", result.VectorStatus)
	}

	// 回滚后 donor 引用计数恢复
	donorRec, _ := fx.catalog.GetByID(ctx, donor.ID)
	if donorRec.ReferenceCount != 1 {
		t.Errorf("Expected donor reference count 1 after rollback, got %d", donorRec.ReferenceCount)
	}

	// 去重路径留下的记录被清掉，只剩 donor 和新上传
	if n := fx.catalog.count(); n != 2 {
		t.Errorf("Expected 2 records after fallback, got %d", n)
	}
}

func TestHandleUploadFallbackOnIncrementFailure(t *testing.T) {
	fx := newLifecycleFixture()
	ctx := context.Background()
	data := []byte("increments will fail")
	fx.seedIndexedOriginal(t, "donor-2", "course-a", data, 2)
	fx.catalog.failIncrement = errors.New("connection reset")

	result, err := fx.uc.HandleUpload(ctx, data, &UploadMeta{
		Filename:       "retry.pdf",
		OrganizationID: "org-1",
		CourseID:       "course-b",
	})
	if err != nil {
		t.Fatalf("HandleUpload failed: %v", err)
	}
	if result.Deduplicated {
		t.Error("Expected fallback to normal upload when increment fails")
	}
	if n := fx.catalog.count(); n != 2 {
		t.Errorf("Expected 2 records after fallback, got %d", n)
	}
}

func TestHandleUploadQuotaExceeded(t *testing.T) {
	fx := newLifecycleFixture()
	ctx := context.Background()
	fx.quota.quota["org-1"] = 10

	data := []byte("this payload is larger than ten bytes")
	_, err := fx.uc.HandleUpload(ctx, data, &UploadMeta{
		Filename:       "big.pdf",
		OrganizationID: "org-1",
		CourseID:       "course-a",
	})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}

	// 记录、文件和配额全部回滚
	if n := fx.catalog.count(); n != 0 {
		t.Errorf("Expected no records after quota rejection, got %d", n)
	}
	if used := fx.quota.usedBytes("org-1"); used != 0 {
		t.Errorf("Expected quota usage 0 after rollback, got %d", used)
	}
}

func TestDuplicateVectorsMultipleBatches(t *testing.T) {
	fx := newLifecycleFixture()
	ctx := context.Background()
	fx.seedIndexedOriginal(t, "donor-big", "course-a", []byte("big doc"), 250)

	copied, err := fx.uc.DuplicateVectors(ctx, "donor-big", "new-file", "course-b", "org-1")
	if err != nil {
		t.Fatalf("DuplicateVectors failed: %v", err)
	}
	if copied != 250 {
		t.Errorf("Expected 250 copied vectors, got %d", copied)
	}
	if n := fx.vectors.countAll(); n != 500 {
		t.Errorf("Expected 500 total points, got %d", n)
	}
}

func TestDuplicateVectorsNoSource(t *testing.T) {
	fx := newLifecycleFixture()
	_, err := fx.uc.DuplicateVectors(context.Background(), "missing-doc", "new-file", "course-b", "org-1")
	if !errors.Is(err, ErrNoSourceVectors) {
		t.Errorf("Expected ErrNoSourceVectors, got %v", err)
	}
}

func TestHandleDeleteNotFound(t *testing.T) {
	fx := newLifecycleFixture()
	_, err := fx.uc.HandleDelete(context.Background(), "no-such-file")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
}

func TestHandleDeletePartialReference(t *testing.T) {
	fx := newLifecycleFixture()
	ctx := context.Background()
	data := []byte("shared between two courses")
	donor := fx.seedIndexedOriginal(t, "donor-3", "course-a", data, 2)

	up, err := fx.uc.HandleUpload(ctx, data, &UploadMeta{
		Filename:       "copy.pdf",
		OrganizationID: "org-1",
		CourseID:       "course-b",
	})
	if err != nil {
		t.Fatalf("setup upload failed: %v", err)
	}
	usedBefore := fx.quota.usedBytes("org-1")

	result, err := fx.uc.HandleDelete(ctx, up.FileID)
	if err != nil {
		t.Fatalf("HandleDelete failed: %v", err)
	}

	if result.PhysicalFileDeleted {
		t.Error("Expected physical file to survive while references remain")
	}
	if result.RemainingReferences != 1 {
		t.Errorf("Expected 1 remaining reference, got %d", result.RemainingReferences)
	}
	if result.VectorsDeleted != 2 {
		t.Errorf("Expected 2 vectors deleted, got %d", result.VectorsDeleted)
	}
	if result.StorageFreedBytes != int64(len(data)) {
		t.Errorf("Expected %d freed bytes, got %d", len(data), result.StorageFreedBytes)
	}

	// course-a 的记录和向量不受影响
	donorRec, _ := fx.catalog.GetByID(ctx, donor.ID)
	if donorRec == nil {
		t.Fatal("Expected donor record to survive")
	}
	if donorRec.VectorStatus != types.VectorStatusIndexed {
		t.Errorf("Expected donor still indexed, got %s", donorRec.VectorStatus)
	}
	if donorRec.ReferenceCount != 1 {
		t.Errorf("Expected donor reference count 1, got %d", donorRec.ReferenceCount)
	}
	if fx.vectors.get(PointID(donor.ID, "chunk-000")) == nil {
		t.Error("Expected donor vectors to survive course-scoped delete")
	}
	if !fx.blobs.exists(donor.StoragePath) {
		t.Error("Expected physical file to survive")
	}
	if used := fx.quota.usedBytes("org-1"); used != usedBefore-int64(len(data)) {
		t.Errorf("Expected quota usage %d, got %d", usedBefore-int64(len(data)), used)
	}
}

func TestHandleDeleteLastReference(t *testing.T) {
	fx := newLifecycleFixture()
	ctx := context.Background()
	data := []byte("single reference content")
	donor := fx.seedIndexedOriginal(t, "donor-4", "course-a", data, 2)

	result, err := fx.uc.HandleDelete(ctx, donor.ID)
	if err != nil {
		t.Fatalf("HandleDelete failed: %v", err)
	}

	if !result.PhysicalFileDeleted {
		t.Error("Expected physical file to be deleted on last reference")
	}
	if result.RemainingReferences != 0 {
		t.Errorf("Expected 0 remaining references, got %d", result.RemainingReferences)
	}
	if fx.blobs.exists(donor.StoragePath) {
		t.Error("Expected physical file to be removed")
	}
	if n := fx.catalog.count(); n != 0 {
		t.Errorf("Expected empty catalog, got %d records", n)
	}
	if n := fx.vectors.countAll(); n != 0 {
		t.Errorf("Expected empty vector index, got %d points", n)
	}
	if used := fx.quota.usedBytes("org-1"); used != 0 {
		t.Errorf("Expected quota usage 0, got %d", used)
	}
}

func TestHandleDeleteLastReferenceOfDuplicate(t *testing.T) {
	fx := newLifecycleFixture()
	ctx := context.Background()
	data := []byte("duplicate outlives original reference")
	donor := fx.seedIndexedOriginal(t, "donor-5", "course-a", data, 1)

	up, err := fx.uc.HandleUpload(ctx, data, &UploadMeta{
		Filename:       "copy.pdf",
		OrganizationID: "org-1",
		CourseID:       "course-b",
	})
	if err != nil {
		t.Fatalf("setup upload failed: %v", err)
	}

	// 先删原始引用，再删副本引用
	first, err := fx.uc.HandleDelete(ctx, donor.ID)
	if err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if first.RemainingReferences != 1 {
		t.Errorf("Expected 1 remaining reference after deleting original, got %d", first.RemainingReferences)
	}
	if first.PhysicalFileDeleted {
		t.Error("Expected physical file to survive while the duplicate still references it")
	}
	// 原始记录的行必须保留，否则副本的 original_file_id 悬空
	if rec, _ := fx.catalog.GetByID(ctx, donor.ID); rec == nil {
		t.Fatal("Expected original record to survive while references remain")
	}
	result, err := fx.uc.HandleDelete(ctx, up.FileID)
	if err != nil {
		t.Fatalf("second delete failed: %v", err)
	}

	if !result.PhysicalFileDeleted {
		t.Error("Expected physical file deletion on terminal delete of duplicate")
	}
	if result.RemainingReferences != 0 {
		t.Errorf("Expected 0 remaining references, got %d", result.RemainingReferences)
	}
	if n := fx.catalog.count(); n != 0 {
		t.Errorf("Expected empty catalog, got %d records", n)
	}
	if n := fx.vectors.countAll(); n != 0 {
		t.Errorf("Expected empty vector index, got %d points", n)
	}
}

func TestHandleDeletePhysicalFailureDoesNotAbort(t *testing.T) {
	fx := newLifecycleFixture()
	ctx := context.Background()
	donor := fx.seedIndexedOriginal(t, "donor-6", "course-a", []byte("stubborn bytes"), 1)
	fx.blobs.failDelete = errors.New("permission denied")

	result, err := fx.uc.HandleDelete(ctx, donor.ID)
	if err != nil {
		t.Fatalf("HandleDelete failed: %v", err)
	}
	if result.PhysicalFileDeleted {
		t.Error("Expected physical_file_deleted=false on blob failure")
	}
	if result.RemainingReferences != 0 {
		t.Errorf("Expected 0 remaining references, got %d", result.RemainingReferences)
	}
	if rec, _ := fx.catalog.GetByID(ctx, donor.ID); rec != nil {
		t.Error("Expected record deletion despite blob failure")
	}
}

func TestSearchCourseFusesDenseAndSparse(t *testing.T) {
	fx := newLifecycleFixture()
	fx.vectors.denseHits = []*SearchHit{
		{PointID: "f1:c1", DocumentID: "f1", ChunkID: "c1", Content: "alpha", Score: 0.9},
		{PointID: "f1:c2", DocumentID: "f1", ChunkID: "c2", Content: "beta", Score: 0.8},
	}
	fx.vectors.sparseHits = []*SearchHit{
		{PointID: "f1:c2", DocumentID: "f1", ChunkID: "c2", Content: "beta", Score: 0.7},
		{PointID: "f1:c3", DocumentID: "f1", ChunkID: "c3", Content: "gamma", Score: 0.6},
	}
	fx.uc.embedder = &fakeEmbedder{withSparse: true}

	hits, err := fx.uc.SearchCourse(context.Background(), "course-a", "query", 3)
	if err != nil {
		t.Fatalf("SearchCourse failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("Expected 3 hits, got %d", len(hits))
	}
	// 双路命中的分块应排在最前
	if hits[0].PointID != "f1:c2" {
		t.Errorf("Expected f1:c2 first (hit by both searches), got %s", hits[0].PointID)
	}
}

func TestSearchCourseDenseOnly(t *testing.T) {
	fx := newLifecycleFixture()
	fx.vectors.denseHits = []*SearchHit{
		{PointID: "f1:c1", Content: "alpha", Score: 0.9},
		{PointID: "f1:c2", Content: "beta", Score: 0.8},
	}

	hits, err := fx.uc.SearchCourse(context.Background(), "course-a", "query", 1)
	if err != nil {
		t.Fatalf("SearchCourse failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(hits))
	}
	if hits[0].PointID != "f1:c1" {
		t.Errorf("Expected top dense hit, got %s", hits[0].PointID)
	}
}
