package restmed

// Item is one entity row as loosely-typed field/value pairs, the shape JSON
// bodies decode into and rows scan out of.
type Item map[string]any

// SortDirection defines sort direction.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// OrderBy is one (field, direction) pair of a sort specification.
type OrderBy struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// AttributeSelection restricts the fields a query returns. Include and
// Exclude are mutually exclusive; when both were requested the parser reports
// an error and inclusion semantics win.
type AttributeSelection struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// QueryOptions is the validated, typed form of a raw query string. One per
// request, derived by the query parser and consumed by the data provider.
type QueryOptions struct {
	Attributes *AttributeSelection `json:"attributes,omitempty"`
	Order      []OrderBy           `json:"order,omitempty"`
	Limit      *int                `json:"limit,omitempty"`
	Offset     *int                `json:"offset,omitempty"`
	// Where holds equality filters from unconsumed query keys. Values pass
	// through unmodified; the provider coerces them by field kind. Left unset
	// whenever the parser reported any error.
	Where map[string]string `json:"where,omitempty"`
}

// Batch payload property names. Any other top-level key is rejected.
const (
	BatchPropCreateItems = "createItems"
	BatchPropUpdateItems = "updateItems"
	BatchPropDeleteItems = "deleteItems"
)

// BatchPayload is the raw body of a batch call: three known item lists plus,
// possibly, unknown keys the validation phase rejects.
type BatchPayload map[string][]Item

// BatchRequest is the validated view of a batch payload.
type BatchRequest struct {
	CreateItems []Item `json:"createItems,omitempty"`
	UpdateItems []Item `json:"updateItems,omitempty"`
	DeleteItems []Item `json:"deleteItems,omitempty"`
}

// BatchResult carries per-list results of a committed batch. Result order
// matches the request order within each list.
type BatchResult struct {
	CreateResults []Item `json:"createResults"`
	UpdateResults []Item `json:"updateResults"`
	DeleteResults []Item `json:"deleteResults"`
}
