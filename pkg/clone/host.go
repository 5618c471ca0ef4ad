package clone

import (
	"database/sql"
	"database/sql/driver"
	"net"
	"net/http"
	"os"
	"reflect"
)

// Interfaces implemented by live connections that must never be persisted.
var hostInterfaces = []reflect.Type{
	reflect.TypeFor[net.Conn](),
	reflect.TypeFor[net.Listener](),
	reflect.TypeFor[net.PacketConn](),
	reflect.TypeFor[driver.Conn](),
}

// Concrete host types, matched by value or pointer.
var hostTypes = []reflect.Type{
	reflect.TypeFor[os.File](),
	reflect.TypeFor[http.Client](),
	reflect.TypeFor[http.Request](),
	reflect.TypeFor[http.Response](),
	reflect.TypeFor[http.Transport](),
	reflect.TypeFor[sql.DB](),
	reflect.TypeFor[sql.Tx](),
	reflect.TypeFor[sql.Conn](),
}

// hostObjectName reports whether t is a non-portable host object and returns the
// name used in its placeholder.
func hostObjectName(t reflect.Type) (string, bool) {
	for _, iface := range hostInterfaces {
		if t.Implements(iface) {
			return iface.String(), true
		}
	}

	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}

	for _, host := range hostTypes {
		if base == host {
			return host.String(), true
		}
	}

	return "", false
}
