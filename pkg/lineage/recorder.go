package lineage

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// Tables are merged on id so re-recording a promotion is a no-op.
	recordPromotionCypher = `
		MERGE (a:Table {id: $from_id})
		SET a.name = $from_name, a.stage_id = $from_stage_id, a.source_id = $from_source_id
		MERGE (b:Table {id: $to_id})
		SET b.name = $to_name, b.stage_id = $to_stage_id, b.source_id = $to_source_id
		MERGE (a)-[r:PROMOTED_TO {cdc_key: $cdc_key}]->(b)
		ON CREATE SET r.recorded_at = datetime()
	`

	downstreamCypher = `
		MATCH (a:Table {id: $id})-[r:PROMOTED_TO]->(b:Table)
		RETURN b.id AS to_id, r.cdc_key AS cdc_key
		ORDER BY r.cdc_key, b.id
	`
)

// Promotion is one PROMOTED_TO edge.
type Promotion struct {
	FromTableID int64 `json:"from_table_id"`
	ToTableID   int64 `json:"to_table_id"`
	CDCKey      int64 `json:"cdc_key"`
}

// Recorder writes promotion edges between Table nodes.
type Recorder struct {
	client *Client
	logger ectologger.Logger
}

func NewRecorder(client *Client, logger ectologger.Logger) *Recorder {
	return &Recorder{client: client, logger: logger}
}

func promotionParams(from, to models.Table, cdcKey int64) map[string]any {
	return map[string]any{
		"from_id":        from.ID,
		"from_name":      from.Name,
		"from_stage_id":  from.StageID,
		"from_source_id": from.SourceID,
		"to_id":          to.ID,
		"to_name":        to.Name,
		"to_stage_id":    to.StageID,
		"to_source_id":   to.SourceID,
		"cdc_key":        cdcKey,
	}
}

// RecordPromotion records (from)-[:PROMOTED_TO {cdc_key}]->(to).
func (r *Recorder) RecordPromotion(ctx context.Context, from, to models.Table, cdcKey int64) error {
	ctx, span := tracing.StartSpan(ctx, "lineage.Recorder.RecordPromotion")
	defer span.End()

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, recordPromotionCypher, promotionParams(from, to, cdcKey))
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to record promotion %d -> %d: %w", from.ID, to.ID, err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"from_table_id": from.ID,
		"to_table_id":   to.ID,
		"cdc_key":       cdcKey,
	}).Debug("Recorded promotion")
	return nil
}

// Downstream returns the promotions out of tableID.
func (r *Recorder) Downstream(ctx context.Context, tableID int64) ([]Promotion, error) {
	ctx, span := tracing.StartSpan(ctx, "lineage.Recorder.Downstream")
	defer span.End()

	res, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, downstreamCypher, map[string]any{"id": tableID})
		if err != nil {
			return nil, err
		}
		promotions := []Promotion{}
		for result.Next(ctx) {
			promotion, err := toPromotion(tableID, result.Record().AsMap())
			if err != nil {
				return nil, err
			}
			promotions = append(promotions, promotion)
		}
		return promotions, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read lineage of table %d: %w", tableID, err)
	}
	return res.([]Promotion), nil
}

func toPromotion(from int64, values map[string]any) (Promotion, error) {
	toID, ok := values["to_id"].(int64)
	if !ok {
		return Promotion{}, fmt.Errorf("unexpected to_id %v", values["to_id"])
	}
	cdcKey, ok := values["cdc_key"].(int64)
	if !ok {
		return Promotion{}, fmt.Errorf("unexpected cdc_key %v", values["cdc_key"])
	}
	return Promotion{FromTableID: from, ToTableID: toID, CDCKey: cdcKey}, nil
}
