package service

import (
	"context"
	"fmt"
	"strings"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/embedding"
	"datachat-be/pkg/memory"
	"datachat-be/pkg/search"
)

// IndexCatalog is the slice of the search client the bootstrap needs.
type IndexCatalog interface {
	ListIndices(ctx context.Context) ([]search.IndexInfo, error)
	GetMapping(ctx context.Context, index string) ([]search.FieldMapping, error)
}

// SchemaBootstrapService summarizes every index mapping into a
// schema-fact memory record at startup, so intent resolution and query
// synthesis can recall relevant schemas by similarity. Records are
// replaced per index, a restart never duplicates them.
type SchemaBootstrapService struct {
	catalog           IndexCatalog
	memoryStore       memory.Store
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

func NewSchemaBootstrapService(
	catalog IndexCatalog,
	memoryStore memory.Store,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) *SchemaBootstrapService {
	return &SchemaBootstrapService{
		catalog:           catalog,
		memoryStore:       memoryStore,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

// Run stores one schema-fact record per visible index. Per-index
// failures are logged and skipped; the cluster being unreachable fails
// the whole pass.
func (s *SchemaBootstrapService) Run(ctx context.Context) error {
	indices, err := s.catalog.ListIndices(ctx)
	if err != nil {
		return fmt.Errorf("list indices: %w", err)
	}

	stored := 0
	for _, index := range indices {
		if err := s.storeSchema(ctx, index.Name); err != nil {
			s.logger.Warn("schema-bootstrap", "schema not stored", map[string]interface{}{
				"index": index.Name,
				"error": err.Error(),
			})
			continue
		}
		stored++
	}

	s.logger.Info("schema-bootstrap", "index schemas memorized", map[string]interface{}{
		"indices": len(indices),
		"stored":  stored,
	})
	return nil
}

func (s *SchemaBootstrapService) storeSchema(ctx context.Context, index string) error {
	mappings, err := s.catalog.GetMapping(ctx, index)
	if err != nil {
		return err
	}

	document := schemaDocument(index, mappings)
	resp, err := s.embeddingProvider.Generate(document, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return err
	}

	if err := s.memoryStore.DeleteByKindIndex(ctx, memory.KindDataSchema, index); err != nil {
		return err
	}

	fields := make([]interface{}, 0, len(mappings))
	for _, m := range mappings {
		fields = append(fields, map[string]interface{}{"name": m.Name, "type": m.Type})
	}
	record := &memory.Record{
		Kind:      memory.KindDataSchema,
		Document:  document,
		Payload:   map[string]interface{}{"fields": fields, "field_count": len(mappings)},
		IndexName: index,
	}
	return s.memoryStore.Save(ctx, record, resp.Embedding.Values)
}

// schemaDocument renders a mapping as the text that gets embedded.
func schemaDocument(index string, mappings []search.FieldMapping) string {
	descriptions := make([]string, 0, len(mappings))
	for _, m := range mappings {
		descriptions = append(descriptions, fmt.Sprintf("%s (%s)", m.Name, m.Type))
	}
	return fmt.Sprintf("Index: %s\nFields: %s", index, strings.Join(descriptions, ", "))
}
