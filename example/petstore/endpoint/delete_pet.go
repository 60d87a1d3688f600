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

// DeletePet serves DELETE /api/pets/{id}.
func DeletePet(d Deps) rest.ApiOption {
	return d.handle(router.Route{
		Method:      http.MethodDelete,
		Path:        "/api/pets/{id}",
		Summary:     "Delete a pet",
		Tags:        []string{"pets"},
		OperationID: "deletePet",
		Validation: router.Validation{
			Params: idParams,
		},
	}, func(ctx context.Context, req *router.Request) (any, error) {
		var params idParam
		err := router.Decode(req.Params, &params)
		if err != nil {
			return nil, err
		}

		err = d.Store.Delete(ctx, params.ID)
		if err != nil {
			return nil, notFound(err)
		}
		return &router.Response{Status: http.StatusNoContent}, nil
	})
}
