// Package projection maps remote records to flat output rows.
package projection

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aluiziolira/woo-export/models"
)

// Shape names accepted by ForShape.
const (
	ShapeTitlesOnly   = "titles_only"
	ShapeTitlesHeader = "titles_header"
	ShapeFull         = "full"
	ShapeOrders       = "orders"
)

// Projector turns one record into one row for a fixed output shape.
type Projector interface {
	Name() string
	// Collection is the REST collection the shape reads, e.g. "products".
	Collection() string
	// FilePrefix names derived output files.
	FilePrefix() string
	// Header returns the column names, or nil when the shape has no header line.
	Header() []string
	Project(rec models.Record) (models.Row, error)
}

type shape struct {
	name       string
	collection string
	prefix     string
	header     []string
	project    func(models.Record) (models.Row, error)
}

func (s *shape) Name() string       { return s.name }
func (s *shape) Collection() string { return s.collection }
func (s *shape) FilePrefix() string { return s.prefix }

func (s *shape) Header() []string {
	if s.header == nil {
		return nil
	}
	out := make([]string, len(s.header))
	copy(out, s.header)
	return out
}

func (s *shape) Project(rec models.Record) (models.Row, error) {
	if rec == nil {
		return nil, &FieldError{Field: "record", Err: ErrMissingField}
	}
	return s.project(rec)
}

var shapes = map[string]*shape{
	ShapeTitlesOnly: {
		name:       ShapeTitlesOnly,
		collection: "products",
		prefix:     "product_titles",
		project:    projectTitle,
	},
	ShapeTitlesHeader: {
		name:       ShapeTitlesHeader,
		collection: "products",
		prefix:     "product_titles",
		header:     []string{"Product Title"},
		project:    projectTitle,
	},
	ShapeFull: {
		name:       ShapeFull,
		collection: "products",
		prefix:     "product_data",
		header:     []string{"title", "price", "product_link", "category", "image_url"},
		project:    projectFull,
	},
	ShapeOrders: {
		name:       ShapeOrders,
		collection: "orders",
		prefix:     "order_data",
		header:     []string{"Name", "Email", "Phone", "Order ID", "Order Status", "Order Amount"},
		project:    projectOrder,
	},
}

// ForShape returns the projector registered under name.
func ForShape(name string) (Projector, error) {
	s, ok := shapes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown shape %q (available: %s)", name, strings.Join(Shapes(), ", "))
	}
	return s, nil
}

// Shapes lists the registered shape names in sorted order.
func Shapes() []string {
	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilePrefixes lists the distinct output file prefixes of all shapes.
func FilePrefixes() []string {
	seen := make(map[string]struct{}, len(shapes))
	var prefixes []string
	for _, s := range shapes {
		if _, ok := seen[s.prefix]; ok {
			continue
		}
		seen[s.prefix] = struct{}{}
		prefixes = append(prefixes, s.prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

func projectTitle(rec models.Record) (models.Row, error) {
	title, err := requiredString(rec, "name")
	if err != nil {
		return nil, err
	}
	return models.Row{title}, nil
}

func projectFull(rec models.Record) (models.Row, error) {
	title, err := requiredString(rec, "name")
	if err != nil {
		return nil, err
	}
	price, err := requiredString(rec, "price")
	if err != nil {
		return nil, err
	}
	link, err := requiredString(rec, "permalink")
	if err != nil {
		return nil, err
	}
	category, err := firstNested(rec, "categories", "name")
	if err != nil {
		return nil, err
	}
	image, err := firstNested(rec, "images", "src")
	if err != nil {
		return nil, err
	}
	return models.Row{title, price, link, category, image}, nil
}

func projectOrder(rec models.Record) (models.Row, error) {
	billing, err := nestedObject(rec, "billing")
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, 4)
	for _, key := range []string{"first_name", "last_name", "email", "phone"} {
		value, err := requiredString(billing, key)
		if err != nil {
			return nil, &FieldError{Field: "billing." + key, Err: errors.Unwrap(err)}
		}
		fields = append(fields, value)
	}

	id, err := requiredString(rec, "id")
	if err != nil {
		return nil, err
	}
	status, err := requiredString(rec, "status")
	if err != nil {
		return nil, err
	}
	total, err := requiredString(rec, "total")
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(fields[0] + " " + fields[1])
	return models.Row{name, fields[2], fields[3], id, status, total}, nil
}
