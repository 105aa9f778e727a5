package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/casecompass/case-compass/internal/database"
	"github.com/casecompass/case-compass/internal/status"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var schemaCache = &sync.Map{}

// Options tune the generic table routes for one model.
type Options[T any] struct {
	// Status points at the row's status field; Machine validates it.
	Status  func(*T) *string
	Machine *status.Machine
	// ReadOnly lists JSON keys clients may send but never write.
	ReadOnly []string
	// WriteOnly maps accepted non-column JSON keys to the column a model
	// hook derives from them.
	WriteOnly map[string]string
}

// table serves list/get/create/update/delete for one descriptor.
type table[T any] struct {
	h        *Handlers
	desc     database.Descriptor
	opts     Options[T]
	pk       *schema.Field
	known    map[string]bool
	writable map[string]string
	// always written on update
	touched []string
}

// Register mounts the five table routes for desc under rg.
func Register[T any](rg *gin.RouterGroup, h *Handlers, desc database.Descriptor, opts Options[T]) {
	t, err := newTable(h, desc, opts)
	if err != nil {
		panic(fmt.Sprintf("register %s: %v", desc.Path, err))
	}

	group := rg.Group("/" + desc.Path)
	group.GET("", t.list)
	group.GET("/:id", t.get)
	group.POST("", t.create)
	group.PUT("/:id", t.update)
	group.DELETE("/:id", t.delete)
}

func newTable[T any](h *Handlers, desc database.Descriptor, opts Options[T]) (*table[T], error) {
	s, err := schema.Parse(new(T), schemaCache, schema.NamingStrategy{})
	if err != nil {
		return nil, err
	}

	t := &table[T]{
		h:        h,
		desc:     desc,
		opts:     opts,
		known:    map[string]bool{},
		writable: map[string]string{},
	}

	readOnly := map[string]bool{}
	for _, key := range opts.ReadOnly {
		readOnly[key] = true
	}

	for _, field := range s.Fields {
		if field.DBName == desc.PrimaryKey {
			t.pk = field
		}
		if field.AutoUpdateTime > 0 {
			t.touched = append(t.touched, field.DBName)
		}

		name := jsonName(field.StructField)
		if name == "" || field.DBName == "" {
			continue
		}
		t.known[name] = true
		if field.PrimaryKey || readOnly[name] || field.AutoUpdateTime > 0 || field.AutoCreateTime > 0 {
			continue
		}
		t.writable[name] = field.DBName
	}
	for key, column := range opts.WriteOnly {
		t.known[key] = true
		t.writable[key] = column
	}

	if t.pk == nil {
		return nil, fmt.Errorf("model %s has no column %q", s.Name, desc.PrimaryKey)
	}
	return t, nil
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func (t *table[T]) list(c *gin.Context) {
	conn, ok := t.h.acquire(c)
	if !ok {
		return
	}
	defer t.h.db.Release(conn)

	rows := make([]T, 0)
	if err := conn.DB.Table(t.desc.Table).Order(t.desc.Order()).Find(&rows).Error; err != nil {
		t.h.respondError(c, "Failed to fetch "+t.desc.Path, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": rows})
}

func (t *table[T]) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	conn, ok := t.h.acquire(c)
	if !ok {
		return
	}
	defer t.h.db.Release(conn)

	var row T
	if err := t.find(conn.DB, id, &row); err != nil {
		t.h.respondError(c, "Failed to fetch "+t.desc.Path, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}

func (t *table[T]) create(c *gin.Context) {
	body, _, err := t.decode(c)
	if err != nil {
		t.h.respondError(c, "Failed to create "+t.desc.Path, err)
		return
	}

	var row T
	if err := json.Unmarshal(body, &row); err != nil {
		t.h.respondError(c, "Failed to create "+t.desc.Path, badRequest("Invalid JSON body: %v", err))
		return
	}
	if t.opts.Status != nil {
		s := t.opts.Status(&row)
		if *s == "" {
			*s = t.opts.Machine.Initial()
		}
		if !t.opts.Machine.Valid(*s) {
			t.h.respondError(c, "Failed to create "+t.desc.Path,
				badRequest("Invalid %s status %q, expected one of %s", t.opts.Machine.Name(), *s, strings.Join(t.opts.Machine.States(), ", ")))
			return
		}
	}
	if err := validate.Struct(&row); err != nil {
		t.h.respondError(c, "Failed to create "+t.desc.Path, err)
		return
	}

	conn, ok := t.h.acquire(c)
	if !ok {
		return
	}
	defer t.h.db.Release(conn)

	var id int64
	err = conn.DB.Transaction(func(tx *gorm.DB) error {
		next, err := database.NextID(tx, t.desc.Sequence)
		if err != nil {
			return err
		}
		if err := t.pk.Set(c.Request.Context(), reflect.ValueOf(&row).Elem(), next); err != nil {
			return err
		}
		id = next
		return tx.Table(t.desc.Table).Create(&row).Error
	})
	if err != nil {
		t.h.respondError(c, "Failed to create "+t.desc.Path, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "id": id})
}

// update overlays the submitted fields onto the stored row and writes only
// those columns. Absent fields keep their stored values.
func (t *table[T]) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	body, keys, err := t.decode(c)
	if err != nil {
		t.h.respondError(c, "Failed to update "+t.desc.Path, err)
		return
	}

	conn, ok := t.h.acquire(c)
	if !ok {
		return
	}
	defer t.h.db.Release(conn)

	err = conn.DB.Transaction(func(tx *gorm.DB) error {
		var row T
		if err := t.find(tx, id, &row); err != nil {
			return err
		}

		var prev string
		if t.opts.Status != nil {
			prev = *t.opts.Status(&row)
		}

		if err := json.Unmarshal(body, &row); err != nil {
			return badRequest("Invalid JSON body: %v", err)
		}
		if t.opts.Status != nil {
			if err := t.opts.Machine.Check(prev, *t.opts.Status(&row)); err != nil {
				return err
			}
		}
		if err := validate.Struct(&row); err != nil {
			return err
		}

		columns := t.columns(keys)
		if len(columns) == 0 {
			return nil
		}
		return tx.Table(t.desc.Table).Model(&row).Select(columns).Updates(&row).Error
	})
	if err != nil {
		t.h.respondError(c, "Failed to update "+t.desc.Path, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (t *table[T]) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	conn, ok := t.h.acquire(c)
	if !ok {
		return
	}
	defer t.h.db.Release(conn)

	err := conn.DB.Transaction(func(tx *gorm.DB) error {
		var row T
		if err := t.find(tx, id, &row); err != nil {
			return err
		}
		return tx.Table(t.desc.Table).Delete(&row).Error
	})
	if err != nil {
		t.h.respondError(c, "Failed to delete "+t.desc.Path, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (t *table[T]) find(db *gorm.DB, id int64, row *T) error {
	return db.Table(t.desc.Table).Where(t.desc.PrimaryKey+" = ?", id).Take(row).Error
}

// decode reads a JSON object, rejects keys the model does not know, and
// re-encodes only the writable ones. It returns the filtered body and the
// writable keys present.
func (t *table[T]) decode(c *gin.Context) ([]byte, []string, error) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, nil, badRequest("Failed to read request body")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, nil, badRequest("Request body must be a JSON object")
	}

	var unknown []string
	filtered := make(map[string]json.RawMessage, len(fields))
	keys := make([]string, 0, len(fields))
	for key, value := range fields {
		if !t.known[key] {
			unknown = append(unknown, key)
			continue
		}
		if _, ok := t.writable[key]; ok {
			filtered[key] = value
			keys = append(keys, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, nil, badRequest("Unknown fields for %s: %s", t.desc.Path, strings.Join(unknown, ", "))
	}
	sort.Strings(keys)

	body, err := json.Marshal(filtered)
	if err != nil {
		return nil, nil, err
	}
	return body, keys, nil
}

func (t *table[T]) columns(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	columns := make([]string, 0, len(keys)+len(t.touched))
	for _, key := range keys {
		columns = append(columns, t.writable[key])
	}
	return append(columns, t.touched...)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		fail(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}
