package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/search"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

func isMsgpack(mediaType string) bool {
	switch mediaType {
	case ContentTypeMsgpack, "application/x-msgpack", "application/vnd.msgpack":
		return true
	}
	return false
}

// searchRequest is a decoded request body.
type searchRequest struct {
	Filter ir.IRObject
	Page   search.Page
}

// decodeBody reads a JSON or MessagePack body. The envelope adds one level,
// so values nest up to maxDepth+1.
func decodeBody(r *http.Request, maxDepth int) (ir.IRValue, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &requestError{status: http.StatusRequestEntityTooLarge, message: "The request body is too large."}
		}
		return nil, badRequest("read body: %v", err)
	}
	if len(data) == 0 {
		return ir.IRObject{}, nil
	}

	mediaType := ContentTypeJSON
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mediaType = mt
		}
	}

	var v ir.IRValue
	if isMsgpack(mediaType) {
		v, err = ir.UnmarshalMsgpackValue(data, maxDepth+1)
	} else {
		v, err = ir.UnmarshalJSONValue(data, maxDepth+1)
	}
	if errors.Is(err, ir.ErrTooDeep) {
		return nil, filter.DepthExceeded(maxDepth)
	}
	if err != nil {
		return nil, badRequest("malformed body: %v", err)
	}
	return v, nil
}

// parseRequest accepts either an envelope {"filter": {...}, "limit": n,
// "offset": n} or a bare filter object.
func parseRequest(v ir.IRValue) (searchRequest, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return searchRequest{}, badRequest("the request body must be an object, got %s", ir.TypeName(v))
	}
	if !isEnvelope(obj) {
		return searchRequest{Filter: obj}, nil
	}

	var req searchRequest
	for _, p := range obj {
		switch p.Key {
		case "filter":
			req.Filter = p.Value.(ir.IRObject)
		case "limit", "offset":
			n, ok := p.Value.(ir.IRInt)
			if !ok || n < 0 {
				return searchRequest{}, badRequest("%s must be a non-negative integer", p.Key)
			}
			if p.Key == "limit" {
				req.Page.Limit = uint64(n)
			} else {
				req.Page.Offset = uint64(n)
			}
		}
	}
	return req, nil
}

// isEnvelope reports whether obj has an object "filter" and no keys other
// than filter, limit and offset. Those names are schema.ReservedFieldNames,
// so no bare filter can take this shape.
func isEnvelope(obj ir.IRObject) bool {
	f, ok := obj.Get("filter")
	if !ok {
		return false
	}
	if _, ok := f.(ir.IRObject); !ok {
		return false
	}
	for _, key := range obj.Keys() {
		if key != "filter" && key != "limit" && key != "offset" {
			return false
		}
	}
	return true
}

// parseQuery reads ?filter=<json>&limit=&offset= from a GET request.
func parseQuery(r *http.Request, maxDepth int) (searchRequest, error) {
	q := r.URL.Query()
	var req searchRequest

	if raw := q.Get("filter"); raw != "" {
		obj, err := ir.UnmarshalJSONObject([]byte(raw), maxDepth)
		if errors.Is(err, ir.ErrTooDeep) {
			return searchRequest{}, filter.DepthExceeded(maxDepth)
		}
		if err != nil {
			return searchRequest{}, badRequest("malformed filter: %v", err)
		}
		req.Filter = obj
	} else {
		req.Filter = ir.IRObject{}
	}

	for key, dst := range map[string]*uint64{"limit": &req.Page.Limit, "offset": &req.Page.Offset} {
		if raw := q.Get(key); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return searchRequest{}, badRequest("%s must be a non-negative integer", key)
			}
			*dst = n
		}
	}
	return req, nil
}

// writeValue encodes v as MessagePack when the client accepts it, else JSON.
func writeValue(w http.ResponseWriter, r *http.Request, status int, v ir.IRValue) {
	var (
		data        []byte
		err         error
		contentType = ContentTypeJSON
	)
	if acceptsMsgpack(r) {
		contentType = ContentTypeMsgpack
		data, err = ir.MarshalMsgpackValue(v)
	} else {
		data, err = ir.MarshalJSONValue(v)
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func acceptsMsgpack(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if mt, _, err := mime.ParseMediaType(strings.TrimSpace(part)); err == nil && isMsgpack(mt) {
			return true
		}
	}
	return false
}
