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
	"github.com/z5labs/apiguard/schema"

	"github.com/z5labs/sdk-go/ptr"
)

// ListPets serves GET /api/pets.
func ListPets(d Deps) rest.ApiOption {
	return d.handle(router.Route{
		Method:      http.MethodGet,
		Path:        "/api/pets",
		Summary:     "List pets",
		Tags:        []string{"pets"},
		OperationID: "listPets",
		Validation: router.Validation{
			Query: schema.Shape{
				"limit": schema.Opt(&schema.Number{
					Meta:    schema.Meta{Description: "Maximum number of pets returned"},
					Integer: true,
					Min:     ptr.Ref(1.0),
					Max:     ptr.Ref(100.0),
				}),
			},
			Response: schema.Arr(petSchema),
		},
	}, func(ctx context.Context, req *router.Request) (any, error) {
		var query struct {
			Limit int `json:"limit"`
		}
		err := router.Decode(req.Query, &query)
		if err != nil {
			return nil, err
		}

		return d.Store.List(ctx, query.Limit)
	})
}
