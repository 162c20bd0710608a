package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/mnohosten/laura-flow/pkg/feed"
)

// Schema builds the GraphQL schema over a feed registry. Queries read
// materialized view state; mutations write into writable document feeds
func Schema(registry *feed.Registry) (graphql.Schema, error) {
	feedInfoType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FeedInfo",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: graphql.String},
			"count":    &graphql.Field{Type: graphql.Int},
			"writable": &graphql.Field{Type: graphql.Boolean},
		},
	})

	itemType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Item",
		Fields: graphql.Fields{
			"key":   &graphql.Field{Type: graphql.String},
			"value": &graphql.Field{Type: JSONScalar},
		},
	})

	writeResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "WriteResult",
		Fields: graphql.Fields{
			"ok":  &graphql.Field{Type: graphql.Boolean},
			"key": &graphql.Field{Type: graphql.String},
		},
	})

	feedInfo := func(f *feed.Feed) map[string]interface{} {
		return map[string]interface{}{
			"name":     f.Name,
			"count":    f.Count(),
			"writable": f.Writable(),
		}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"feeds": &graphql.Field{
				Type:        graphql.NewList(feedInfoType),
				Description: "List all registered feeds",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					infos := make([]map[string]interface{}, 0)
					for _, name := range registry.Names() {
						f, err := registry.Get(name)
						if err != nil {
							continue
						}
						infos = append(infos, feedInfo(f))
					}
					return infos, nil
				},
			},
			"feed": &graphql.Field{
				Type:        feedInfoType,
				Description: "Look up one feed by name",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name := p.Args["name"].(string)
					f, err := registry.Get(name)
					if err != nil {
						return nil, err
					}
					return feedInfo(f), nil
				},
			},
			"items": &graphql.Field{
				Type:        graphql.NewList(itemType),
				Description: "Read the materialized items of a feed",
				Args: graphql.FieldConfigArgument{
					"feed": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name := p.Args["feed"].(string)
					f, err := registry.Get(name)
					if err != nil {
						return nil, err
					}
					items := f.Items()
					result := make([]map[string]interface{}, 0, len(items))
					for _, item := range items {
						result = append(result, map[string]interface{}{
							"key":   fmt.Sprint(item.Key),
							"value": item.Value,
						})
					}
					return result, nil
				},
			},
			"item": &graphql.Field{
				Type:        itemType,
				Description: "Look up one item of a feed by key",
				Args: graphql.FieldConfigArgument{
					"feed": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"key":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name := p.Args["feed"].(string)
					key := p.Args["key"].(string)
					f, err := registry.Get(name)
					if err != nil {
						return nil, err
					}
					value, exists := f.Lookup(key)
					if !exists {
						return nil, fmt.Errorf("item not found: %s", key)
					}
					return map[string]interface{}{"key": key, "value": value}, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"upsertItem": &graphql.Field{
				Type:        writeResultType,
				Description: "Write a document into a writable feed",
				Args: graphql.FieldConfigArgument{
					"feed":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"key":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"value": &graphql.ArgumentConfig{Type: graphql.NewNonNull(JSONScalar)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name := p.Args["feed"].(string)
					key := p.Args["key"].(string)
					f, err := registry.Get(name)
					if err != nil {
						return nil, err
					}
					if !f.Writable() {
						return nil, fmt.Errorf("feed is read-only: %s", name)
					}
					value, ok := p.Args["value"].(map[string]interface{})
					if !ok {
						return nil, fmt.Errorf("value must be a JSON object")
					}
					if err := f.Upsert(key, value); err != nil {
						return nil, err
					}
					return map[string]interface{}{"ok": true, "key": key}, nil
				},
			},
			"deleteItem": &graphql.Field{
				Type:        writeResultType,
				Description: "Delete a document from a writable feed",
				Args: graphql.FieldConfigArgument{
					"feed": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"key":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name := p.Args["feed"].(string)
					key := p.Args["key"].(string)
					f, err := registry.Get(name)
					if err != nil {
						return nil, err
					}
					if !f.Writable() {
						return nil, fmt.Errorf("feed is read-only: %s", name)
					}
					if err := f.Delete(key); err != nil {
						return nil, err
					}
					return map[string]interface{}{"ok": true, "key": key}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}
