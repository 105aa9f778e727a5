package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/casecompass/case-compass/internal/database"
)

// Entity is the typed view of one table route. Every row it returns has
// passed through the entity's Schema.
type Entity[T any] struct {
	client  *Client
	path    string
	affects []string
	schema  *Schema
}

// For binds the table route of desc to T.
func For[T any](c *Client, desc database.Descriptor) *Entity[T] {
	return &Entity[T]{client: c, path: desc.Path, affects: desc.Affects, schema: SchemaOf[T]()}
}

func (e *Entity[T]) List(ctx context.Context) ([]T, error) {
	env, err := e.client.do(ctx, http.MethodGet, "/"+e.path, nil)
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &raws); err != nil {
			return nil, fmt.Errorf("unexpected %s list: %w", e.path, err)
		}
	}

	rows := make([]T, 0, len(raws))
	for _, raw := range raws {
		var row T
		if err := e.schema.Decode(raw, &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e *Entity[T]) Get(ctx context.Context, id int64) (*T, error) {
	env, err := e.client.do(ctx, http.MethodGet, e.item(id), nil)
	if err != nil {
		return nil, err
	}

	var row T
	if err := e.schema.Decode(env.Data, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// Create posts values (a map or a model) and returns the new id.
func (e *Entity[T]) Create(ctx context.Context, values interface{}) (int64, error) {
	env, err := e.client.do(ctx, http.MethodPost, "/"+e.path, values)
	if err != nil {
		return 0, err
	}
	return env.ID, nil
}

// Update sends the given fields; fields left out keep their stored values.
func (e *Entity[T]) Update(ctx context.Context, id int64, values interface{}) error {
	_, err := e.client.do(ctx, http.MethodPut, e.item(id), values)
	return err
}

func (e *Entity[T]) Delete(ctx context.Context, id int64) error {
	_, err := e.client.do(ctx, http.MethodDelete, e.item(id), nil)
	return err
}

// Action posts to a workflow endpoint such as "confirm" or "approve" and
// returns the updated row.
func (e *Entity[T]) Action(ctx context.Context, id int64, action string, body interface{}) (*T, error) {
	env, err := e.client.do(ctx, http.MethodPost, e.item(id)+"/"+action, body)
	if err != nil {
		return nil, err
	}

	var row T
	if err := e.schema.Decode(env.Data, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (e *Entity[T]) item(id int64) string {
	return "/" + e.path + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) Victims() *Entity[database.Victim] { return For[database.Victim](c, database.Victims) }
func (c *Client) Cases() *Entity[database.Case]     { return For[database.Case](c, database.Cases) }
func (c *Client) Doctors() *Entity[database.Doctor] { return For[database.Doctor](c, database.Doctors) }
func (c *Client) Appointments() *Entity[database.Appointment] {
	return For[database.Appointment](c, database.Appointments)
}
func (c *Client) Consents() *Entity[database.Consent] { return For[database.Consent](c, database.Consents) }
func (c *Client) CaseNotes() *Entity[database.CaseNote] {
	return For[database.CaseNote](c, database.CaseNotes)
}
func (c *Client) MedicalRecords() *Entity[database.MedicalRecord] {
	return For[database.MedicalRecord](c, database.MedicalRecords)
}
func (c *Client) LegalDocuments() *Entity[database.LegalDocument] {
	return For[database.LegalDocument](c, database.LegalDocuments)
}
func (c *Client) Documents() *Entity[database.Document] {
	return For[database.Document](c, database.Documents)
}
func (c *Client) FinancialAid() *Entity[database.FinancialAid] {
	return For[database.FinancialAid](c, database.FinancialAids)
}
func (c *Client) Users() *Entity[database.User]         { return For[database.User](c, database.Users) }
func (c *Client) Roles() *Entity[database.Role]         { return For[database.Role](c, database.Roles) }
func (c *Client) UserRoles() *Entity[database.UserRole] { return For[database.UserRole](c, database.UserRoles) }
func (c *Client) Notifications() *Entity[database.Notification] {
	return For[database.Notification](c, database.Notifications)
}

// Case fetches one case.
func (c *Client) Case(ctx context.Context, id int64) (*database.Case, error) {
	return c.Cases().Get(ctx, id)
}
