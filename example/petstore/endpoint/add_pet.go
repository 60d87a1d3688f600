// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"context"
	"net/http"

	"github.com/z5labs/apiguard/example/petstore/pet"
	"github.com/z5labs/apiguard/rest"
	"github.com/z5labs/apiguard/router"
	"github.com/z5labs/apiguard/schema"
)

// AddPet serves POST /api/pets.
func AddPet(d Deps) rest.ApiOption {
	return d.handle(router.Route{
		Method:      http.MethodPost,
		Path:        "/api/pets",
		Summary:     "Add a pet",
		Tags:        []string{"pets"},
		OperationID: "addPet",
		Validation: router.Validation{
			Data: schema.Shape{
				"name": &schema.String{MinLength: 1, MaxLength: 64},
				"kind": &schema.String{Enum: []string{"cat", "dog"}},
				"tag":  schema.Opt(schema.Str()),
			},
			Response: petSchema,
		},
	}, func(ctx context.Context, req *router.Request) (any, error) {
		var p pet.Pet
		err := router.Decode(req.Data, &p)
		if err != nil {
			return nil, err
		}

		p, err = d.Store.Add(ctx, p)
		if err != nil {
			return nil, err
		}
		return router.JSON(http.StatusCreated, p), nil
	})
}
