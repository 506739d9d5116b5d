package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/synapse-db/synapse/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultScrollPageSize = 100

// QdrantConnectionConfig holds configuration for the Qdrant connection.
type QdrantConnectionConfig struct {
	Host   string
	Port   int
	APIKey string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS bool   // Explicitly enable TLS without API Key
}

// apiKeyInterceptor creates a unary interceptor that adds the API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository handles vector operations against Qdrant. One repository
// serves every shard collection; callers pass the collection name per call.
type QdrantRepository struct {
	conn          *grpc.ClientConn
	pointsClient  pb.PointsClient
	collectClient pb.CollectionsClient
}

// NewQdrantRepository creates a new QdrantRepository.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var opts []grpc.DialOption

	useTLS := cfg.UseTLS || cfg.APIKey != ""
	if useTLS {
		// TLS 1.3 minimum for Qdrant Cloud
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))

		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:          conn,
		pointsClient:  pb.NewPointsClient(conn),
		collectClient: pb.NewCollectionsClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// CollectionStats summarizes one index collection.
type CollectionStats struct {
	Dimension  int
	PointCount int64
}

// CollectionExists reports whether the named collection is present.
func (r *QdrantRepository) CollectionExists(ctx context.Context, name string) (bool, error) {
	resp, err := r.collectClient.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, c := range resp.GetCollections() {
		if c.GetName() == name {
			return true, nil
		}
	}
	return false, nil
}

// CollectionInfo returns dimension and point count for a collection.
func (r *QdrantRepository) CollectionInfo(ctx context.Context, name string) (*CollectionStats, error) {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	stats := &CollectionStats{
		PointCount: int64(info.GetResult().GetPointsCount()),
	}
	if size, ok := collectionVectorSize(info.GetResult()); ok {
		stats.Dimension = int(size)
	}
	return stats, nil
}

// CreateCollection creates a collection with cosine distance and the payload
// indexes required for filtered deletion and scroll-based enumeration.
func (r *QdrantRepository) CreateCollection(ctx context.Context, name string, dimension int) error {
	_, err := r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(100),
			FullScanThreshold: optionalUint64(10000),
		},
		OptimizersConfig: &pb.OptimizersConfigDiff{
			IndexingThreshold: optionalUint64(20000),
		},
		OnDiskPayload: optionalBool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	payloadIndexes := []struct {
		field string
		typ   pb.FieldType
	}{
		{"db_key", pb.FieldType_FieldTypeKeyword},
		{"source_collection", pb.FieldType_FieldTypeKeyword},
		{"source_doc_id", pb.FieldType_FieldTypeKeyword},
		{"created_at", pb.FieldType_FieldTypeDatetime},
	}
	for _, idx := range payloadIndexes {
		fieldType := idx.typ
		_, err := r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      idx.field,
			FieldType:      &fieldType,
		})
		if err != nil {
			return fmt.Errorf("failed to create payload index %s on %s: %w", idx.field, name, err)
		}
	}

	return nil
}

// DeleteCollection drops the named collection and all of its points.
func (r *QdrantRepository) DeleteCollection(ctx context.Context, name string) error {
	_, err := r.collectClient.Delete(ctx, &pb.DeleteCollection{
		CollectionName: name,
	})
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	return nil
}

// UpsertBatch writes a batch of points to the given collection.
func (r *QdrantRepository) UpsertBatch(ctx context.Context, collection string, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	pbPoints := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		pbPoints[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: buildPayload(&p.Payload),
		}
	}

	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Points:         pbPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

func buildPayload(p *domain.PointPayload) map[string]*pb.Value {
	fieldValues := make([]*pb.Value, len(p.TextFields))
	for i, f := range p.TextFields {
		fieldValues[i] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: f}}
	}

	return map[string]*pb.Value{
		"db_key":            {Kind: &pb.Value_StringValue{StringValue: p.DBKey}},
		"source_collection": {Kind: &pb.Value_StringValue{StringValue: p.SourceCollection}},
		"source_doc_id":     {Kind: &pb.Value_StringValue{StringValue: p.SourceDocID}},
		"chunk_index":       {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.ChunkIndex)}},
		"text":              {Kind: &pb.Value_StringValue{StringValue: p.Text}},
		"text_fields":       {Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: fieldValues}}},
		"db_name":           {Kind: &pb.Value_StringValue{StringValue: p.DBName}},
		"created_at":        {Kind: &pb.Value_StringValue{StringValue: p.CreatedAt.UTC().Format(time.RFC3339)}},
	}
}

// pairFilter matches points belonging to one (db key, source collection) pair.
func pairFilter(dbKey, sourceCollection string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key:   "db_key",
						Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: dbKey}},
					},
				},
			},
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key:   "source_collection",
						Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: sourceCollection}},
					},
				},
			},
		},
	}
}

// ScrollPairPointIDs enumerates the ids of every point in the collection that
// belongs to the (db key, source collection) pair, one page at a time.
func (r *QdrantRepository) ScrollPairPointIDs(ctx context.Context, collection, dbKey, sourceCollection string) ([]string, error) {
	filter := pairFilter(dbKey, sourceCollection)
	limit := uint32(defaultScrollPageSize)

	var ids []string
	var offset *pb.PointId

	for {
		resp, err := r.pointsClient.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: collection,
			Filter:         filter,
			Limit:          &limit,
			Offset:         offset,
			WithPayload: &pb.WithPayloadSelector{
				SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: false},
			},
			WithVectors: &pb.WithVectorsSelector{
				SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: false},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}

		for _, point := range resp.GetResult() {
			ids = append(ids, point.GetId().GetUuid())
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	return ids, nil
}

// DeletePoints removes points by id from the given collection.
func (r *QdrantRepository) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}

	_, err := r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete %d points: %w", len(ids), err)
	}
	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func optionalBool(v bool) *bool {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	if paramsMap := vectors.GetParamsMap(); paramsMap != nil {
		for _, vectorParams := range paramsMap.GetMap() {
			if vectorParams == nil {
				continue
			}
			if size := vectorParams.GetSize(); size > 0 {
				return size, true
			}
		}
	}

	return 0, false
}
