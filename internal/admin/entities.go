// Package admin exposes the back-office CRUD surface as a registry of
// entities. Each entity declares its editable fields explicitly and wires
// them to a repository; the HTTP layer stays generic.
package admin

import (
	"context"
	"errors"
	"fmt"

	"lectoria/internal/db"
)

// Field kinds drive decoding of submitted values.
const (
	KindString = "string"
	KindText   = "text"
	KindBool   = "bool"
	KindInt    = "int"
)

var ErrUnknownEntity = errors.New("unknown entity")

type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type Field struct {
	Name     string
	Label    string
	Kind     string
	Required bool
}

// Entity binds a name and field list to repository operations. List and Get
// return repository models; Create and Update consume a decoded value map.
type Entity struct {
	Name      string
	Fields    []Field
	AdminOnly bool

	List   func(ctx context.Context) (any, error)
	Get    func(ctx context.Context, id string) (any, error)
	Create func(ctx context.Context, values map[string]any) (any, error)
	Update func(ctx context.Context, id string, values map[string]any) error
	Delete func(ctx context.Context, id string) error
}

type Registry struct {
	entities map[string]*Entity
	order    []string
}

func (r *Registry) Get(name string) (*Entity, error) {
	e, ok := r.entities[name]
	if !ok {
		return nil, ErrUnknownEntity
	}
	return e, nil
}

func (r *Registry) Names() []string {
	return r.order
}

func (r *Registry) add(e *Entity) {
	r.entities[e.Name] = e
	r.order = append(r.order, e.Name)
}

// NewRegistry wires every managed entity to its repository.
func NewRegistry(database *db.DB) *Registry {
	sections := db.NewSectionRepository(database)
	lectures := db.NewLectureRepository(database)
	contacts := db.NewContactRepository(database)
	site := db.NewSiteRepository(database)

	r := &Registry{entities: map[string]*Entity{}}

	r.add(&Entity{
		Name: "sections",
		Fields: []Field{
			{Name: "name", Label: "Name", Kind: KindString, Required: true},
			{Name: "description", Label: "Description", Kind: KindText},
			{Name: "slug", Label: "Slug", Kind: KindString, Required: true},
			{Name: "image", Label: "Image", Kind: KindString},
			{Name: "position", Label: "Position", Kind: KindInt},
			{Name: "is_active", Label: "Active", Kind: KindBool},
		},
		List: func(ctx context.Context) (any, error) { return sections.List(ctx) },
		Get:  func(ctx context.Context, id string) (any, error) { return sections.FindByID(ctx, id) },
		Create: func(ctx context.Context, values map[string]any) (any, error) {
			p, err := sectionParams(values)
			if err != nil {
				return nil, err
			}
			return sections.Create(ctx, p)
		},
		Update: func(ctx context.Context, id string, values map[string]any) error {
			p, err := sectionParams(values)
			if err != nil {
				return err
			}
			return sections.Update(ctx, id, p)
		},
		Delete: sections.Delete,
	})

	r.add(&Entity{
		Name: "lectures",
		Fields: []Field{
			{Name: "title", Label: "Title", Kind: KindString, Required: true},
			{Name: "subtitle", Label: "Subtitle", Kind: KindString},
			{Name: "description", Label: "Description", Kind: KindText},
			{Name: "content", Label: "Content", Kind: KindText},
			{Name: "image", Label: "Image", Kind: KindString},
			{Name: "slug", Label: "Slug", Kind: KindString, Required: true},
			{Name: "lecture_type", Label: "Type", Kind: KindString},
			{Name: "section_id", Label: "Section", Kind: KindString},
			{Name: "position", Label: "Position", Kind: KindInt},
			{Name: "is_active", Label: "Active", Kind: KindBool},
		},
		List: func(ctx context.Context) (any, error) { return lectures.List(ctx) },
		Get:  func(ctx context.Context, id string) (any, error) { return lectures.FindByID(ctx, id) },
		Create: func(ctx context.Context, values map[string]any) (any, error) {
			p, err := lectureParams(values)
			if err != nil {
				return nil, err
			}
			return lectures.Create(ctx, p)
		},
		Update: func(ctx context.Context, id string, values map[string]any) error {
			p, err := lectureParams(values)
			if err != nil {
				return err
			}
			// Bookings reference lectures by slug in confirmation emails,
			// so a referenced lecture keeps its slug.
			current, err := lectures.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if current.Slug != p.Slug {
				referenced, err := lectures.HasOrders(ctx, id)
				if err != nil {
					return err
				}
				if referenced {
					return &FieldError{Field: "slug", Reason: "cannot change while bookings reference this lecture"}
				}
			}
			return lectures.Update(ctx, id, p)
		},
		Delete: lectures.Delete,
	})

	r.add(&Entity{
		Name: "contacts",
		Fields: []Field{
			{Name: "name", Label: "Name", Kind: KindString, Required: true},
			{Name: "email", Label: "Email", Kind: KindString},
			{Name: "phone", Label: "Phone", Kind: KindString},
			{Name: "address", Label: "Address", Kind: KindString},
			{Name: "position", Label: "Position", Kind: KindString},
			{Name: "description", Label: "Description", Kind: KindText},
			{Name: "image", Label: "Image", Kind: KindString},
			{Name: "is_active", Label: "Active", Kind: KindBool},
			{Name: "sort_order", Label: "Sort order", Kind: KindInt},
		},
		List: func(ctx context.Context) (any, error) { return contacts.List(ctx) },
		Get:  func(ctx context.Context, id string) (any, error) { return contacts.FindByID(ctx, id) },
		Create: func(ctx context.Context, values map[string]any) (any, error) {
			p, err := contactParams(values)
			if err != nil {
				return nil, err
			}
			return contacts.Create(ctx, p)
		},
		Update: func(ctx context.Context, id string, values map[string]any) error {
			p, err := contactParams(values)
			if err != nil {
				return err
			}
			return contacts.Update(ctx, id, p)
		},
		Delete: contacts.Delete,
	})

	r.add(&Entity{
		Name: "menu-items",
		Fields: []Field{
			{Name: "name", Label: "Name", Kind: KindString, Required: true},
			{Name: "url", Label: "URL", Kind: KindString},
			{Name: "position", Label: "Position", Kind: KindInt},
			{Name: "is_active", Label: "Active", Kind: KindBool},
			{Name: "parent_id", Label: "Parent", Kind: KindString},
		},
		List: func(ctx context.Context) (any, error) { return site.ListMenuItems(ctx, false) },
		Get:  func(ctx context.Context, id string) (any, error) { return site.FindMenuItem(ctx, id) },
		Create: func(ctx context.Context, values map[string]any) (any, error) {
			p, err := menuItemParams(values)
			if err != nil {
				return nil, err
			}
			return site.CreateMenuItem(ctx, p)
		},
		Update: func(ctx context.Context, id string, values map[string]any) error {
			p, err := menuItemParams(values)
			if err != nil {
				return err
			}
			return site.UpdateMenuItem(ctx, id, p)
		},
		Delete: site.DeleteMenuItem,
	})

	r.add(&Entity{
		Name: "home-blocks",
		Fields: []Field{
			{Name: "title", Label: "Title", Kind: KindString},
			{Name: "content", Label: "Content", Kind: KindText},
			{Name: "image", Label: "Image", Kind: KindString},
			{Name: "button_text", Label: "Button text", Kind: KindString},
			{Name: "button_url", Label: "Button URL", Kind: KindString},
			{Name: "position", Label: "Position", Kind: KindInt},
			{Name: "block_type", Label: "Type", Kind: KindString, Required: true},
			{Name: "template", Label: "Template", Kind: KindString},
			{Name: "slug", Label: "Slug", Kind: KindString},
			{Name: "is_active", Label: "Active", Kind: KindBool},
		},
		List: func(ctx context.Context) (any, error) { return site.ListHomeBlocks(ctx, false) },
		Get:  func(ctx context.Context, id string) (any, error) { return site.FindHomeBlock(ctx, id) },
		Create: func(ctx context.Context, values map[string]any) (any, error) {
			p, err := homeBlockParams(values)
			if err != nil {
				return nil, err
			}
			return site.CreateHomeBlock(ctx, p)
		},
		Update: func(ctx context.Context, id string, values map[string]any) error {
			p, err := homeBlockParams(values)
			if err != nil {
				return err
			}
			return site.UpdateHomeBlock(ctx, id, p)
		},
		Delete: site.DeleteHomeBlock,
	})

	return r
}

func sectionParams(values map[string]any) (db.SectionParams, error) {
	var p db.SectionParams
	var err error
	if p.Name, err = requiredString(values, "name"); err != nil {
		return p, err
	}
	if p.Slug, err = requiredString(values, "slug"); err != nil {
		return p, err
	}
	p.Description = optionalString(values, "description")
	p.Image = optionalStringPtr(values, "image")
	p.Position = optionalInt(values, "position")
	p.IsActive = optionalBool(values, "is_active")
	return p, nil
}

func lectureParams(values map[string]any) (db.LectureParams, error) {
	var p db.LectureParams
	var err error
	if p.Title, err = requiredString(values, "title"); err != nil {
		return p, err
	}
	if p.Slug, err = requiredString(values, "slug"); err != nil {
		return p, err
	}
	p.Subtitle = optionalString(values, "subtitle")
	p.Description = optionalString(values, "description")
	p.Content = optionalString(values, "content")
	p.Image = optionalStringPtr(values, "image")
	p.LectureType = optionalString(values, "lecture_type")
	p.SectionID = optionalStringPtr(values, "section_id")
	p.Position = optionalInt(values, "position")
	p.IsActive = optionalBool(values, "is_active")
	return p, nil
}

func contactParams(values map[string]any) (db.ContactParams, error) {
	var p db.ContactParams
	var err error
	if p.Name, err = requiredString(values, "name"); err != nil {
		return p, err
	}
	p.Email = optionalString(values, "email")
	p.Phone = optionalString(values, "phone")
	p.Address = optionalString(values, "address")
	p.Position = optionalString(values, "position")
	p.Description = optionalString(values, "description")
	p.Image = optionalStringPtr(values, "image")
	p.IsActive = optionalBool(values, "is_active")
	p.SortOrder = optionalInt(values, "sort_order")
	return p, nil
}

func menuItemParams(values map[string]any) (db.MenuItemParams, error) {
	var p db.MenuItemParams
	var err error
	if p.Name, err = requiredString(values, "name"); err != nil {
		return p, err
	}
	p.URL = optionalString(values, "url")
	p.Position = optionalInt(values, "position")
	p.IsActive = optionalBool(values, "is_active")
	p.ParentID = optionalStringPtr(values, "parent_id")
	return p, nil
}

func homeBlockParams(values map[string]any) (db.HomeBlockParams, error) {
	var p db.HomeBlockParams
	var err error
	if p.BlockType, err = requiredString(values, "block_type"); err != nil {
		return p, err
	}
	p.Title = optionalString(values, "title")
	p.Content = optionalString(values, "content")
	p.Image = optionalStringPtr(values, "image")
	p.ButtonText = optionalString(values, "button_text")
	p.ButtonURL = optionalString(values, "button_url")
	p.Position = optionalInt(values, "position")
	p.Template = optionalString(values, "template")
	p.Slug = optionalString(values, "slug")
	p.IsActive = optionalBool(values, "is_active")
	return p, nil
}

func requiredString(values map[string]any, key string) (string, error) {
	s, _ := values[key].(string)
	if s == "" {
		return "", &FieldError{Field: key, Reason: "is required"}
	}
	return s, nil
}

func optionalString(values map[string]any, key string) string {
	s, _ := values[key].(string)
	return s
}

func optionalStringPtr(values map[string]any, key string) *string {
	s, _ := values[key].(string)
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(values map[string]any, key string) int {
	switch v := values[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func optionalBool(values map[string]any, key string) bool {
	b, _ := values[key].(bool)
	return b
}
