package jsonapi

import (
	"encoding/json"
	"net/http"
)

// WriteDocument writes doc with the JSON:API content type.
func WriteDocument(w http.ResponseWriter, status int, doc Document) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(doc)
}

// WriteResource writes a single resource.
func WriteResource(w http.ResponseWriter, status int, r Resource) {
	WriteDocument(w, status, Document{Data: r, JSONAPI: &JSONAPI{Version: Version}})
}

// WriteCollection writes a list of resources. An empty list is written as
// [] rather than omitted.
func WriteCollection(w http.ResponseWriter, status int, resources []Resource, meta Meta) {
	if resources == nil {
		resources = []Resource{}
	}
	WriteDocument(w, status, Document{Data: resources, Meta: meta, JSONAPI: &JSONAPI{Version: Version}})
}

// WriteMeta writes a document holding only metadata.
func WriteMeta(w http.ResponseWriter, status int, meta Meta) {
	WriteDocument(w, status, Document{Meta: meta})
}

// WriteAccepted writes a 202 for work that continues asynchronously.
func WriteAccepted(w http.ResponseWriter, meta Meta) {
	WriteMeta(w, http.StatusAccepted, meta)
}

// WriteError writes one or more errors. The status comes from the first.
func WriteError(w http.ResponseWriter, errs ...Error) {
	if len(errs) == 0 {
		errs = []Error{ErrInternal("")}
	}

	status := errs[0].StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteDocument(w, status, Document{Errors: errs})
}

// WriteBadRequest is a convenience for 400 errors.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, ErrBadRequest(detail))
}

// WriteNotFound is a convenience for 404 errors.
func WriteNotFound(w http.ResponseWriter, resourceType, id string) {
	WriteError(w, ErrNotFoundWithID(resourceType, id))
}

// WriteInternalError is a convenience for 500 errors.
func WriteInternalError(w http.ResponseWriter, detail string) {
	WriteError(w, ErrInternal(detail))
}
