package v1

import (
	"net/http"

	"github.com/tinoosan/posting/internal/dictionary"
)

// GET /v1/dictionary/actions
func (s *Server) getActionsDictionary(w http.ResponseWriter, r *http.Request) {
	toJSON(w, http.StatusOK, struct {
		Items []dictionary.ActionDef `json:"items"`
	}{Items: dictionary.Actions()})
}

// GET /v1/dictionary/voucher-types
func (s *Server) getVoucherTypesDictionary(w http.ResponseWriter, r *http.Request) {
	toJSON(w, http.StatusOK, struct {
		Items []dictionary.VoucherTypeDef `json:"items"`
	}{Items: dictionary.VoucherTypes()})
}
