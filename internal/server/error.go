package server

import (
	"errors"
	"net/http"
)

func getErrorStatusCode(err error) int {
	var se interface{ StatusCode() int }
	if errors.As(err, &se) {
		return se.StatusCode()
	}
	return http.StatusInternalServerError
}

func getDisplayError(err error) error {
	var de interface{ DisplayError() error }
	if errors.As(err, &de) {
		return de.DisplayError()
	}
	return err
}
