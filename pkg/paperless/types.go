// Package paperless provides a client for the Paperless-ngx REST API.
package paperless

// Document is a Paperless document with its indexed fields.
type Document struct {
	ID               int    `json:"id"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	OriginalFileName string `json:"original_file_name"`
	Tags             []int  `json:"tags"`
	Correspondent    *int   `json:"correspondent"`
	DocumentType     *int   `json:"document_type"`
	CreatedDate      string `json:"created_date"`
	ArchiveSerialNum *int   `json:"archive_serial_number"`
}

// Tag is a Paperless tag entity.
type Tag struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Color         string `json:"color"`
	DocumentCount int    `json:"document_count"`
}

// Correspondent is a Paperless correspondent entity.
type Correspondent struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	DocumentCount int    `json:"document_count"`
}

// DocumentUpdate carries the fields of a single write-back call. Nil
// pointers and nil slices are omitted from the request so one update can
// batch every changed field without clobbering the rest.
type DocumentUpdate struct {
	Title         *string `json:"title,omitempty"`
	Tags          []int   `json:"tags,omitempty"`
	Correspondent *int    `json:"correspondent,omitempty"`
	DocumentType  *int    `json:"document_type,omitempty"`
	CreatedDate   *string `json:"created_date,omitempty"`
}

// IsEmpty reports whether the update carries no fields at all.
func (u DocumentUpdate) IsEmpty() bool {
	return u.Title == nil && u.Tags == nil && u.Correspondent == nil &&
		u.DocumentType == nil && u.CreatedDate == nil
}

// listResponse is the Paperless paginated envelope.
type listResponse[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`
}
