// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"context"
	"net/http"

	"github.com/z5labs/apiguard/rest"
	"github.com/z5labs/apiguard/router"
)

// FindPet serves GET /api/pets/{id}.
func FindPet(d Deps) rest.ApiOption {
	return d.handle(router.Route{
		Method:      http.MethodGet,
		Path:        "/api/pets/{id}",
		Summary:     "Find a pet by id",
		Tags:        []string{"pets"},
		OperationID: "findPet",
		Validation: router.Validation{
			Params:   idParams,
			Response: petSchema,
		},
	}, func(ctx context.Context, req *router.Request) (any, error) {
		var params idParam
		err := router.Decode(req.Params, &params)
		if err != nil {
			return nil, err
		}

		p, err := d.Store.Get(ctx, params.ID)
		if err != nil {
			return nil, notFound(err)
		}
		return p, nil
	})
}
