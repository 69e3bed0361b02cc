package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/defi-health-scanner/internal/models"
)

// containsFold matches documents whose field contains term, case-insensitively.
// term is matched literally.
func containsFold(field, term string) bson.M {
	return bson.M{field: bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}}
}

// AuditRepository reads audit reports
type AuditRepository struct {
	coll *mongo.Collection
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *MongoDB) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

// FindByProject returns audits whose file name mentions project
func (r *AuditRepository) FindByProject(ctx context.Context, project string) ([]models.AuditRecord, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 0, "source": 1, "fileName": 1})
	cursor, err := r.coll.Find(ctx, containsFold("fileName", project), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}

	records := make([]models.AuditRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode audits: %w", err)
	}
	return records, nil
}

// IncidentRepository reads reported hacks
type IncidentRepository struct {
	coll *mongo.Collection
}

// NewIncidentRepository creates a new incident repository
func NewIncidentRepository(db *MongoDB) *IncidentRepository {
	return &IncidentRepository{coll: db.Collection(incidentCollection)}
}

// FindByProject returns incidents whose protocol mentions project
func (r *IncidentRepository) FindByProject(ctx context.Context, project string) ([]models.IncidentRecord, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 0})
	cursor, err := r.coll.Find(ctx, containsFold("protocol", project), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}

	records := make([]models.IncidentRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode incidents: %w", err)
	}
	return records, nil
}

// PoolRepository stores liquidity pools keyed by pool ID
type PoolRepository struct {
	coll *mongo.Collection
}

// NewPoolRepository creates a new pool repository
func NewPoolRepository(db *MongoDB) *PoolRepository {
	return &PoolRepository{coll: db.Collection(poolCollection)}
}

// FindBySymbol returns pools whose symbol mentions symbol
func (r *PoolRepository) FindBySymbol(ctx context.Context, symbol string) ([]models.LiquidityPool, error) {
	cursor, err := r.coll.Find(ctx, containsFold("symbol", symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}

	pools := make([]models.LiquidityPool, 0)
	if err := cursor.All(ctx, &pools); err != nil {
		return nil, fmt.Errorf("failed to decode pools: %w", err)
	}
	return pools, nil
}

// UpsertMany replaces each pool by ID, inserting new ones. Returns inserted and modified counts.
func (r *PoolRepository) UpsertMany(ctx context.Context, pools []models.LiquidityPool) (int64, int64, error) {
	if len(pools) == 0 {
		return 0, 0, nil
	}

	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(pools))
	for i := range pools {
		pools[i].UpdatedAt = now
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": pools[i].Pool}).
			SetReplacement(pools[i]).
			SetUpsert(true))
	}

	res, err := r.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert pools: %w", err)
	}
	return res.UpsertedCount, res.ModifiedCount, nil
}

// ReportRepository stores generated AI reports
type ReportRepository struct {
	coll *mongo.Collection
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *MongoDB) *ReportRepository {
	return &ReportRepository{coll: db.Collection(reportCollection)}
}

// Save inserts a report
func (r *ReportRepository) Save(ctx context.Context, report *models.AIReport) error {
	if _, err := r.coll.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Latest returns the newest report for project, or ErrNotFound
func (r *ReportRepository) Latest(ctx context.Context, project string) (*models.AIReport, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var report models.AIReport
	err := r.coll.FindOne(ctx, bson.M{"project": project}, opts).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}
