package dav

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/beevik/etree"

	httperrors "gitea.jw6.us/james/calhub/internal/http/errors"
)

// reportQuery summarizes a REPORT body. Filters are recorded but not applied.
type reportQuery struct {
	Kind      string
	HasFilter bool
	Props     []string
}

// parseReportQuery inspects a REPORT body leniently. An empty or unparseable
// body yields the zero value.
func parseReportQuery(body []byte) reportQuery {
	if len(bytes.TrimSpace(body)) == 0 {
		return reportQuery{}
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return reportQuery{}
	}
	root := doc.Root()
	if root == nil {
		return reportQuery{}
	}
	q := reportQuery{
		Kind:      root.Tag,
		HasFilter: root.FindElement("./filter") != nil,
	}
	if props := root.FindElement("./prop"); props != nil {
		for _, el := range props.ChildElements() {
			q.Props = append(q.Props, el.Tag)
		}
	}
	return q
}

func (q reportQuery) String() string {
	kind := q.Kind
	if kind == "" {
		kind = "empty"
	}
	return fmt.Sprintf("kind=%s filter=%t props=%v", kind, q.HasFilter, q.Props)
}

// inspectReport reads and logs the REPORT body. It reports false when the
// response has already been written.
func (h *Handler) inspectReport(w http.ResponseWriter, r *http.Request) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	q := parseReportQuery(body)
	if q.HasFilter {
		httperrors.LogInfo(r, "REPORT filter ignored: "+q.String())
	}
	return true
}
