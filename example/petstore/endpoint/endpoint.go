// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package endpoint defines the petstore routes.
package endpoint

import (
	"errors"
	"net/http"

	"github.com/z5labs/apiguard/breaker"
	"github.com/z5labs/apiguard/example/petstore/pet"
	"github.com/z5labs/apiguard/rest"
	"github.com/z5labs/apiguard/router"
	"github.com/z5labs/apiguard/schema"
)

// Deps are shared by every endpoint.
type Deps struct {
	Router  *router.Router
	Breaker *breaker.Breaker
	Store   pet.Store
}

func (d Deps) handle(route router.Route, dispatch router.Dispatch) rest.ApiOption {
	return rest.Handle(d.Router, route, dispatch, rest.Breaker(d.Breaker))
}

var petSchema = schema.Describe(schema.Shape{
	"id":   schema.Str(),
	"name": schema.Str(),
	"kind": &schema.String{Enum: []string{"cat", "dog"}},
	"tag":  schema.Opt(schema.Str()),
}, schema.Meta{Title: "Pet"})

var idParams = schema.Shape{
	"id": schema.Describe(schema.Str(), schema.Meta{Description: "Pet id", Format: "uuid"}),
}

type idParam struct {
	ID string `json:"id"`
}

func notFound(err error) error {
	if errors.Is(err, pet.ErrNotFound) {
		return router.NewError(http.StatusNotFound, err.Error()).WithCode("pet_not_found")
	}
	return err
}
