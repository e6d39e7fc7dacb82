package middleware

import (
	"github.com/Crown-Wars/rojo/pkg/snapshot"
)

// Registration order is significant: it breaks syncback priority ties,
// orders init-file scanning, and orders glob claims. More specific script
// extensions come before the plain module extension, and the model formats
// come last so that every specialized representation wins first.
func init() {
	snapshot.Register(&directoryMiddleware{})
	snapshot.Register(&projectMiddleware{})
	snapshot.Register(&scriptMiddleware{id: "luau_server", class: "Script", extension: "server.luau"})
	snapshot.Register(&scriptMiddleware{id: "luau_client", class: "LocalScript", extension: "client.luau"})
	snapshot.Register(&scriptMiddleware{id: "luau", class: "ModuleScript", extension: "luau"})
	snapshot.Register(&jsonModelMiddleware{})
	snapshot.Register(&jsonMiddleware{})
	snapshot.Register(&tomlMiddleware{})
	snapshot.Register(&csvMiddleware{})
	snapshot.Register(&textMiddleware{})
	snapshot.Register(&modelMiddleware{id: "rbxm", extension: "rbxm"})
	snapshot.Register(&modelMiddleware{id: "rbxmx", extension: "rbxmx"})
}
