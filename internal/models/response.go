package models

import "encoding/json"

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Errors  []error     `json:"errors"`
	Data    interface{} `json:"data"`
}

// MarshalJSON writes errors as their messages.
func (r Response) MarshalJSON() ([]byte, error) {
	errors := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return json.Marshal(struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Errors  []string    `json:"errors"`
		Data    interface{} `json:"data"`
	}{r.Success, r.Message, errors, r.Data})
}
