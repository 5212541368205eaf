package data

import (
	"context"
	"fmt"
	"sort"

	"github.com/lk2023060901/course-content-backend/internal/content/biz"
	"github.com/lk2023060901/course-content-backend/internal/pkg/milvus"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// upsertBatchSize 向量写入批大小
const upsertBatchSize = 100

// MilvusVectorIndex 实现 biz.VectorIndex 接口
type MilvusVectorIndex struct {
	client     *milvus.Client
	collection string
	dim        int
}

// NewVectorIndex 创建 Milvus 向量索引
func NewVectorIndex(client *milvus.Client, collection string, dim int) *MilvusVectorIndex {
	return &MilvusVectorIndex{
		client:     client,
		collection: collection,
		dim:        dim,
	}
}

// EnsureCollection 创建 collection、索引并加载（已存在时直接返回）
func (s *MilvusVectorIndex) EnsureCollection(ctx context.Context) error {
	cli := s.client.GetClient()
	if cli == nil {
		return fmt.Errorf("milvus client is not available")
	}

	has, err := cli.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := entity.NewSchema().
		WithName(s.collection).
		WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName("document_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName("course_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName("organization_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName("chunk_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName("content").WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
		WithField(entity.NewField().WithName("heading_path").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
		WithField(entity.NewField().WithName("chapter").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256)).
		WithField(entity.NewField().WithName("page").WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName("has_code").WithDataType(entity.FieldTypeBool)).
		WithField(entity.NewField().WithName("has_table").WithDataType(entity.FieldTypeBool)).
		WithField(entity.NewField().WithName("has_image").WithDataType(entity.FieldTypeBool)).
		WithField(entity.NewField().WithName("dense").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim))).
		WithField(entity.NewField().WithName("sparse").WithDataType(entity.FieldTypeSparseVector))

	if err := cli.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, schema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	denseIdx := index.NewAutoIndex(entity.COSINE)
	if _, err := cli.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, "dense", denseIdx)); err != nil {
		return fmt.Errorf("failed to create dense index: %w", err)
	}

	sparseIdx := index.NewSparseInvertedIndex(entity.IP, 0.2)
	if _, err := cli.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, "sparse", sparseIdx)); err != nil {
		return fmt.Errorf("failed to create sparse index: %w", err)
	}

	loadTask, err := cli.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection load: %w", err)
	}

	return nil
}

// Upsert 批量写入向量点，同主键覆盖
func (s *MilvusVectorIndex) Upsert(ctx context.Context, points []*biz.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	cli := s.client.GetClient()
	if cli == nil {
		return fmt.Errorf("milvus client is not available")
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := s.upsertBatch(ctx, cli, points[start:end]); err != nil {
			return err
		}
	}

	// 刷新以确保数据持久化
	flushTask, err := cli.Flush(ctx, milvusclient.NewFlushOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}

	return nil
}

func (s *MilvusVectorIndex) upsertBatch(ctx context.Context, cli *milvusclient.Client, points []*biz.VectorPoint) error {
	n := len(points)
	ids := make([]string, n)
	documentIDs := make([]string, n)
	courseIDs := make([]string, n)
	organizationIDs := make([]string, n)
	chunkIDs := make([]string, n)
	contents := make([]string, n)
	headingPaths := make([]string, n)
	chapters := make([]string, n)
	pages := make([]int64, n)
	hasCode := make([]bool, n)
	hasTable := make([]bool, n)
	hasImage := make([]bool, n)
	dense := make([][]float32, n)
	sparse := make([]entity.SparseEmbedding, n)

	for i, p := range points {
		ids[i] = p.ID
		documentIDs[i] = p.DocumentID
		courseIDs[i] = p.CourseID
		organizationIDs[i] = p.OrganizationID
		chunkIDs[i] = p.ChunkID
		contents[i] = p.Content
		headingPaths[i] = p.HeadingPath
		chapters[i] = p.Chapter
		pages[i] = int64(p.Page)
		hasCode[i] = p.HasCode
		hasTable[i] = p.HasTable
		hasImage[i] = p.HasImage
		dense[i] = p.Dense

		se, err := toSparseEmbedding(p.Sparse)
		if err != nil {
			return fmt.Errorf("failed to build sparse embedding for point %s: %w", p.ID, err)
		}
		sparse[i] = se
	}

	_, err := cli.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(s.collection).
		WithColumns(
			column.NewColumnVarChar("id", ids),
			column.NewColumnVarChar("document_id", documentIDs),
			column.NewColumnVarChar("course_id", courseIDs),
			column.NewColumnVarChar("organization_id", organizationIDs),
			column.NewColumnVarChar("chunk_id", chunkIDs),
			column.NewColumnVarChar("content", contents),
			column.NewColumnVarChar("heading_path", headingPaths),
			column.NewColumnVarChar("chapter", chapters),
			column.NewColumnInt64("page", pages),
			column.NewColumnBool("has_code", hasCode),
			column.NewColumnBool("has_table", hasTable),
			column.NewColumnBool("has_image", hasImage),
			column.NewColumnFloatVector("dense", s.dim, dense),
			column.NewColumnSparseVectors("sparse", sparse),
		))
	if err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

// ScrollByDocument 按主键游标分页读取全部字段（含向量数据）
// 用 id > afterID 的 keyset 分页而不是 offset，
// offset+limit 会撞上 Milvus 的查询窗口上限（默认 16384）；
// Query 结果按主键升序归并，取末尾 id 作为下一页游标是安全的
func (s *MilvusVectorIndex) ScrollByDocument(ctx context.Context, documentID, afterID string, limit int) ([]*biz.VectorPoint, error) {
	cli := s.client.GetClient()
	if cli == nil {
		return nil, fmt.Errorf("milvus client is not available")
	}

	filter := fmt.Sprintf("document_id == '%s'", documentID)
	if afterID != "" {
		filter = fmt.Sprintf("document_id == '%s' && id > '%s'", documentID, afterID)
	}

	resultSet, err := cli.Query(ctx, milvusclient.NewQueryOption(s.collection).
		WithFilter(filter).
		WithOutputFields("id", "document_id", "course_id", "organization_id", "chunk_id",
			"content", "heading_path", "chapter", "page", "has_code", "has_table", "has_image",
			"dense", "sparse").
		WithLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	count := resultSet.ResultCount
	if count == 0 {
		return nil, nil
	}

	idCol := resultSet.GetColumn("id")
	docCol := resultSet.GetColumn("document_id")
	courseCol := resultSet.GetColumn("course_id")
	orgCol := resultSet.GetColumn("organization_id")
	chunkCol := resultSet.GetColumn("chunk_id")
	contentCol := resultSet.GetColumn("content")
	headingCol := resultSet.GetColumn("heading_path")
	chapterCol := resultSet.GetColumn("chapter")
	pageCol := resultSet.GetColumn("page")
	codeCol := resultSet.GetColumn("has_code")
	tableCol := resultSet.GetColumn("has_table")
	imageCol := resultSet.GetColumn("has_image")

	denseCol, ok := resultSet.GetColumn("dense").(*column.ColumnFloatVector)
	if !ok {
		return nil, fmt.Errorf("unexpected dense column type")
	}
	sparseCol, ok := resultSet.GetColumn("sparse").(*column.ColumnSparseFloatVector)
	if !ok {
		return nil, fmt.Errorf("unexpected sparse column type")
	}

	points := make([]*biz.VectorPoint, 0, count)
	for i := 0; i < count; i++ {
		id, _ := idCol.GetAsString(i)
		docID, _ := docCol.GetAsString(i)
		courseID, _ := courseCol.GetAsString(i)
		orgID, _ := orgCol.GetAsString(i)
		chunkID, _ := chunkCol.GetAsString(i)
		content, _ := contentCol.GetAsString(i)
		heading, _ := headingCol.GetAsString(i)
		chapter, _ := chapterCol.GetAsString(i)
		page, _ := pageCol.GetAsInt64(i)
		code, _ := codeCol.GetAsBool(i)
		table, _ := tableCol.GetAsBool(i)
		image, _ := imageCol.GetAsBool(i)

		points = append(points, &biz.VectorPoint{
			ID:             id,
			DocumentID:     docID,
			CourseID:       courseID,
			OrganizationID: orgID,
			ChunkID:        chunkID,
			Content:        content,
			HeadingPath:    heading,
			Chapter:        chapter,
			Page:           int(page),
			HasCode:        code,
			HasTable:       table,
			HasImage:       image,
			Dense:          denseCol.Data()[i],
			Sparse:         fromSparseEmbedding(sparseCol.Data()[i]),
		})
	}

	return points, nil
}

// CountByDocument 统计文档的向量点数量
func (s *MilvusVectorIndex) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	cli := s.client.GetClient()
	if cli == nil {
		return 0, fmt.Errorf("milvus client is not available")
	}

	resultSet, err := cli.Query(ctx, milvusclient.NewQueryOption(s.collection).
		WithFilter(fmt.Sprintf("document_id == '%s'", documentID)).
		WithOutputFields("count(*)"))
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}

	countCol := resultSet.GetColumn("count(*)")
	if countCol == nil || countCol.Len() == 0 {
		return 0, nil
	}
	count, err := countCol.GetAsInt64(0)
	if err != nil {
		return 0, fmt.Errorf("failed to parse count: %w", err)
	}
	return count, nil
}

// DeleteByDocumentAndCourse 删除某文档在某课程范围内的向量点
func (s *MilvusVectorIndex) DeleteByDocumentAndCourse(ctx context.Context, documentID, courseID string) (int64, error) {
	return s.deleteByExpr(ctx, fmt.Sprintf("document_id == '%s' and course_id == '%s'", documentID, courseID))
}

// DeleteByDocument 删除某文档的全部向量点（跨课程清扫用）
func (s *MilvusVectorIndex) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	return s.deleteByExpr(ctx, fmt.Sprintf("document_id == '%s'", documentID))
}

// DeleteByCourse 删除某课程的全部向量点
func (s *MilvusVectorIndex) DeleteByCourse(ctx context.Context, courseID string) (int64, error) {
	return s.deleteByExpr(ctx, fmt.Sprintf("course_id == '%s'", courseID))
}

func (s *MilvusVectorIndex) deleteByExpr(ctx context.Context, expr string) (int64, error) {
	cli := s.client.GetClient()
	if cli == nil {
		return 0, fmt.Errorf("milvus client is not available")
	}

	result, err := cli.Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithExpr(expr))
	if err != nil {
		return 0, fmt.Errorf("failed to delete vectors: %w", err)
	}

	// 刷新以确保删除立即生效
	flushTask, err := cli.Flush(ctx, milvusclient.NewFlushOption(s.collection))
	if err != nil {
		return result.DeleteCount, fmt.Errorf("failed to flush after delete: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return result.DeleteCount, fmt.Errorf("failed to wait for flush after delete: %w", err)
	}

	return result.DeleteCount, nil
}

// SearchDense 课程范围内的稠密向量搜索
func (s *MilvusVectorIndex) SearchDense(ctx context.Context, courseID string, vector []float32, topK int) ([]*biz.SearchHit, error) {
	return s.search(ctx, courseID, entity.FloatVector(vector), "dense", topK)
}

// SearchSparse 课程范围内的稀疏向量搜索
func (s *MilvusVectorIndex) SearchSparse(ctx context.Context, courseID string, vector map[uint32]float32, topK int) ([]*biz.SearchHit, error) {
	se, err := toSparseEmbedding(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to build sparse query vector: %w", err)
	}
	return s.search(ctx, courseID, se, "sparse", topK)
}

func (s *MilvusVectorIndex) search(ctx context.Context, courseID string, vector entity.Vector, annsField string, topK int) ([]*biz.SearchHit, error) {
	cli := s.client.GetClient()
	if cli == nil {
		return nil, fmt.Errorf("milvus client is not available")
	}

	searchResult, err := cli.Search(ctx, milvusclient.NewSearchOption(
		s.collection,
		topK,
		[]entity.Vector{vector},
	).WithFilter(fmt.Sprintf("course_id == '%s'", courseID)).
		WithANNSField(annsField).
		WithOutputFields("document_id", "chunk_id", "content"))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var hits []*biz.SearchHit
	for _, resultSet := range searchResult {
		idCol := resultSet.IDs
		docIDs := resultSet.GetColumn("document_id")
		chunkIDs := resultSet.GetColumn("chunk_id")
		contents := resultSet.GetColumn("content")

		for i := 0; i < resultSet.ResultCount; i++ {
			pointID, _ := idCol.GetAsString(i)
			documentID, _ := docIDs.GetAsString(i)
			chunkID, _ := chunkIDs.GetAsString(i)
			content, _ := contents.GetAsString(i)

			hits = append(hits, &biz.SearchHit{
				PointID:    pointID,
				DocumentID: documentID,
				ChunkID:    chunkID,
				Content:    content,
				Score:      resultSet.Scores[i],
			})
		}
	}

	return hits, nil
}

// toSparseEmbedding 将稀疏向量 map 转为有序的 Milvus 稀疏表示
// Milvus 拒绝空的稀疏行，空向量用一个近零权重的占位项代替，
// 避免单个空分块拖垮整批写入
func toSparseEmbedding(vec map[uint32]float32) (entity.SparseEmbedding, error) {
	if len(vec) == 0 {
		return entity.NewSliceSparseEmbedding([]uint32{0}, []float32{1e-9})
	}

	positions := make([]uint32, 0, len(vec))
	for pos := range vec {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	values := make([]float32, len(positions))
	for i, pos := range positions {
		values[i] = vec[pos]
	}
	return entity.NewSliceSparseEmbedding(positions, values)
}

func fromSparseEmbedding(se entity.SparseEmbedding) map[uint32]float32 {
	if se == nil {
		return nil
	}
	out := make(map[uint32]float32, se.Len())
	for i := 0; i < se.Len(); i++ {
		pos, value, ok := se.Get(i)
		if !ok {
			continue
		}
		out[pos] = value
	}
	return out
}
