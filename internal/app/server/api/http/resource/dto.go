package resource

import "encoding/json"

type listInput struct {
	DocType         string `path:"doctype" doc:"Document type, e.g. Sales Invoice"`
	Filters         string `query:"filters" doc:"JSON array of [field, operator, value] triples"`
	Fields          string `query:"fields" doc:"JSON array of field names"`
	OrderBy         string `query:"order_by" example:"modified desc"`
	LimitStart      int    `query:"limit_start" minimum:"0"`
	LimitPageLength int    `query:"limit_page_length" minimum:"0"`
}

type listOutput struct {
	Body struct {
		Data []json.RawMessage `json:"data"`
	}
}

type getInput struct {
	DocType string `path:"doctype"`
	Name    string `path:"name"`
}

type docOutput struct {
	Body struct {
		Data json.RawMessage `json:"data"`
	}
}

type createInput struct {
	DocType string `path:"doctype"`
	Body    map[string]any
}
