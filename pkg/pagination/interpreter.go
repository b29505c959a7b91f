package pagination

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Response field names, first match wins.
var (
	pageFields  = []string{"page"}
	sizeFields  = []string{"page_size", "pageSize", "size"}
	totalFields = []string{"total_items", "totalItems"}
	tokenFields = []string{"_scroll", "scroll", "scroll_id", "scrollId"}
)

const nextLinkField = "_links.next"

// Hint carries the request-side values an interpreter may need.
type Hint struct {
	// ItemsPath is the gjson path of the items container, e.g. "_embedded.units"
	ItemsPath string

	// Page and Size are the requested (clamped) values, used when the
	// response omits its own.
	Page int
	Size int
}

// Interpretation is what an interpreter extracts from one raw response.
type Interpretation[T any] struct {
	Items    []T
	State    PageState
	Metadata Metadata
}

// Interpreter turns one raw remote response into items and page state.
// Implementations hold no per-run state.
type Interpreter[T any] interface {
	// Mode is the protocol this interpreter understands.
	Mode() Mode

	// Interpret parses one response. A missing items container is not an
	// error: it produces no items and sets Metadata.ContainerMissing.
	Interpret(raw []byte, hint Hint) (Interpretation[T], error)

	// Done reports whether the run must stop after this response.
	Done(in Interpretation[T]) bool
}

// NewInterpreter returns the interpreter for a mode.
func NewInterpreter[T any](mode Mode) (Interpreter[T], error) {
	switch mode {
	case ModeStandard, "":
		return StandardInterpreter[T]{}, nil
	case ModeScroll:
		return ScrollInterpreter[T]{}, nil
	default:
		return nil, ErrUnsupportedMode
	}
}

// StandardInterpreter reads page/size paged responses.
type StandardInterpreter[T any] struct{}

// Mode implements Interpreter.
func (StandardInterpreter[T]) Mode() Mode { return ModeStandard }

// Interpret implements Interpreter. The response's own page, size and total
// are authoritative; the hint only fills fields the response leaves out.
func (StandardInterpreter[T]) Interpret(raw []byte, hint Hint) (Interpretation[T], error) {
	doc := parse(raw)
	items, found, err := extractItems[T](doc, hint.ItemsPath)
	if err != nil {
		return Interpretation[T]{}, err
	}

	page := intField(doc, pageFields, hint.Page)
	size := intField(doc, sizeFields, hint.Size)
	total := intField(doc, totalFields, len(items))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = max(hint.Size, 1)
	}
	if total < 0 {
		total = 0
	}

	return Interpretation[T]{
		Items: items,
		State: NewPageState(page, size, total),
		Metadata: Metadata{
			Mode:             ModeStandard,
			ContainerMissing: !found,
		},
	}, nil
}

// Done implements Interpreter.
func (StandardInterpreter[T]) Done(in Interpretation[T]) bool {
	return !in.State.HasNext
}

// ScrollInterpreter reads continuation-token responses.
type ScrollInterpreter[T any] struct{}

// Mode implements Interpreter.
func (ScrollInterpreter[T]) Mode() Mode { return ModeScroll }

// Interpret implements Interpreter.
func (ScrollInterpreter[T]) Interpret(raw []byte, hint Hint) (Interpretation[T], error) {
	doc := parse(raw)
	items, found, err := extractItems[T](doc, hint.ItemsPath)
	if err != nil {
		return Interpretation[T]{}, err
	}

	token := stringField(doc, tokenFields)
	total := intField(doc, totalFields, len(items))
	if total < 0 {
		total = 0
	}
	size := hint.Size
	if size < 1 {
		size = max(len(items), 1)
	}

	return Interpretation[T]{
		Items: items,
		State: NewScrollState(size, total, doc.Get(nextLinkField).Exists(), token),
		Metadata: Metadata{
			Mode:              ModeScroll,
			ContinuationToken: token,
			ContainerMissing:  !found,
		},
	}, nil
}

// Done implements Interpreter. An empty response or a missing token ends
// the run even when the response still advertises a next link.
func (ScrollInterpreter[T]) Done(in Interpretation[T]) bool {
	return len(in.Items) == 0 || in.Metadata.ContinuationToken == ""
}

func parse(raw []byte) gjson.Result {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(raw)
}

// extractItems decodes the container at path. found is false when the
// container is absent or not an array.
func extractItems[T any](doc gjson.Result, path string) (items []T, found bool, err error) {
	container := doc.Get(path)
	if path == "" || !container.IsArray() {
		return []T{}, false, nil
	}

	elems := container.Array()
	items = make([]T, 0, len(elems))
	for i, elem := range elems {
		var v T
		if err := json.Unmarshal([]byte(elem.Raw), &v); err != nil {
			return nil, true, &DecodeError{Path: path, Index: i, Err: err}
		}
		items = append(items, v)
	}
	return items, true, nil
}

func intField(doc gjson.Result, names []string, fallback int) int {
	for _, name := range names {
		if r := doc.Get(name); r.Exists() && r.Type == gjson.Number {
			return int(r.Int())
		}
	}
	return fallback
}

func stringField(doc gjson.Result, names []string) string {
	for _, name := range names {
		if r := doc.Get(name); r.Exists() && r.String() != "" {
			return r.String()
		}
	}
	return ""
}
