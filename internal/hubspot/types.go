package hubspot

// Object types used by the gateway.
const (
	ObjectContacts = "contacts"
	ObjectCalls    = "calls"
)

// AssociationCallToContact is the v3 association label linking a call to a contact.
const AssociationCallToContact = "CALL_TO_CONTACT"

// Object is a CRM record as returned by the objects API.
type Object struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
	CreatedAt  string         `json:"createdAt,omitempty"`
	UpdatedAt  string         `json:"updatedAt,omitempty"`
	Archived   bool           `json:"archived"`
}

// ObjectInput is the body of create and update calls.
type ObjectInput struct {
	Properties map[string]any `json:"properties"`
}

type Filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups"`
	Limit        int           `json:"limit,omitempty"`
}

// EqualTo builds a single-filter search on an exact property value.
func EqualTo(property, value string) SearchRequest {
	return SearchRequest{
		FilterGroups: []FilterGroup{{
			Filters: []Filter{{PropertyName: property, Operator: "EQ", Value: value}},
		}},
	}
}

// Page is a list or search result. Total is only as reliable as the upstream reports it.
type Page struct {
	Total   int      `json:"total"`
	Results []Object `json:"results"`
	Paging  *Paging  `json:"paging,omitempty"`
}

type Paging struct {
	Next *PagingNext `json:"next,omitempty"`
}

type PagingNext struct {
	After string `json:"after"`
	Link  string `json:"link,omitempty"`
}
