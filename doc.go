// Package contract describes HTTP APIs as data so that clients and servers
// can be derived from one definition and never drift.
//
// An API is a list of [Endpoint] values. Each endpoint names a method, a path
// template with ":name" placeholders, its parameters and the [Schema] of its
// response:
//
//	var api = contract.MustRegistry(
//	    contract.Endpoint{
//	        Method: contract.MethodGet,
//	        Path:   "/users/:id",
//	        Alias:  "getUser",
//	        Parameters: []contract.Parameter{
//	            {Name: "id", Type: contract.ParamPath, Schema: schema.Int()},
//	        },
//	        Response: schema.Struct[User](),
//	    },
//	)
//
// The registry enforces three invariants when it is built: (method, path)
// pairs are unique, non-empty aliases are unique, and an endpoint has at most
// one Body parameter.
//
// The client package dispatches calls through an ordered plugin chain
// (package plugin); the server package runs the generic handler pipeline.
// Concrete schemas live in package schema; any type implementing Schema can
// be used instead.
package contract
