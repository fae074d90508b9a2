package gateway

import (
	"context"

	"maintdesk/internal/client"
	"maintdesk/internal/forms"
	"maintdesk/internal/schema"
	"maintdesk/internal/tables"
)

// referencePageSize bounds how many candidate records a picker loads. Larger
// related sets should be narrowed by search in the UI rather than dumped
// into one dropdown.
const referencePageSize = 200

// ReferenceLoader backs form reference pickers with the generic entity
// client.
type ReferenceLoader struct {
	entities *client.Client
}

func NewReferenceLoader(entities *client.Client) *ReferenceLoader {
	return &ReferenceLoader{entities: entities}
}

// ReferenceOptions lists candidate records of the related entity, rendered
// through the field's display instruction.
func (r *ReferenceLoader) ReferenceOptions(ctx context.Context, field *schema.FieldDefinition) ([]forms.Option, error) {
	result, err := r.entities.List(ctx, field.RelatedEntity, client.ListParams{
		Page:  1,
		Limit: referencePageSize,
	})
	if err != nil {
		return nil, err
	}

	options := make([]forms.Option, 0, len(result.Records))
	for _, record := range result.Records {
		id, _ := record["id"].(string)
		if id == "" {
			continue
		}
		options = append(options, forms.Option{
			Value: id,
			Label: tables.RenderDisplay(field, record),
		})
	}
	return options, nil
}
