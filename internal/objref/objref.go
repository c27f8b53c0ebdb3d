// Package objref converts between the wire forms of domain/network
// references and live hypervisor.Domain/hypervisor.Network handles.
package objref

import (
	"context"

	"github.com/virtrpcd/virtrpcd/internal/hypervisor"
	"github.com/virtrpcd/virtrpcd/internal/rpc"
	"github.com/virtrpcd/virtrpcd/internal/wire"
)

// DomainRef is the wire form of a non-null domain reference.
type DomainRef struct {
	Name string
	UUID [16]byte
	ID   int32
}

// NetworkRef is the wire form of a non-null network reference.
type NetworkRef struct {
	Name string
	UUID [16]byte
}

func DecodeDomainRef(d *wire.Decoder) (DomainRef, error) {
	var r DomainRef
	name, err := d.String(rpc.MaxNameLen)
	if err != nil {
		return r, err
	}
	uuid, err := d.FixedBytes(16)
	if err != nil {
		return r, err
	}
	id, err := d.Int32()
	if err != nil {
		return r, err
	}
	r.Name = name
	copy(r.UUID[:], uuid)
	r.ID = id
	return r, nil
}

func EncodeDomainRef(e *wire.Encoder, r DomainRef) error {
	if err := e.String(r.Name); err != nil {
		return err
	}
	if err := e.FixedBytes(r.UUID[:]); err != nil {
		return err
	}
	return e.Int32(r.ID)
}

func DecodeNetworkRef(d *wire.Decoder) (NetworkRef, error) {
	var r NetworkRef
	name, err := d.String(rpc.MaxNameLen)
	if err != nil {
		return r, err
	}
	uuid, err := d.FixedBytes(16)
	if err != nil {
		return r, err
	}
	r.Name = name
	copy(r.UUID[:], uuid)
	return r, nil
}

func EncodeNetworkRef(e *wire.Encoder, r NetworkRef) error {
	if err := e.String(r.Name); err != nil {
		return err
	}
	return e.FixedBytes(r.UUID[:])
}

// GetNonNullDomain resolves a wire DomainRef to a live handle by
// name+UUID: it looks the domain up by name and reports ErrNotFound if the
// handle's UUID differs from the wire UUID. The wire-supplied id is ignored
// (see DESIGN.md); MakeNonNullDomain always sends back the server-side id.
func GetNonNullDomain(ctx context.Context, conn hypervisor.Connection, ref DomainRef) (*hypervisor.Domain, error) {
	dom, err := conn.DomainLookupByName(ctx, ref.Name)
	if err != nil {
		return nil, err
	}
	if dom.UUID != ref.UUID {
		return nil, hypervisor.ErrNotFound
	}
	return dom, nil
}

// MakeNonNullDomain copies a live handle's identity into a fresh wire
// DomainRef.
func MakeNonNullDomain(dom *hypervisor.Domain) DomainRef {
	return DomainRef{Name: dom.Name, UUID: dom.UUID, ID: dom.ID}
}

// GetNonNullNetwork resolves a wire NetworkRef to a live handle by
// name+UUID, the same way GetNonNullDomain does. Networks carry no id field.
func GetNonNullNetwork(ctx context.Context, conn hypervisor.Connection, ref NetworkRef) (*hypervisor.Network, error) {
	net, err := conn.NetworkLookupByName(ctx, ref.Name)
	if err != nil {
		return nil, err
	}
	if net.UUID != ref.UUID {
		return nil, hypervisor.ErrNotFound
	}
	return net, nil
}

// MakeNonNullNetwork copies a live handle's identity into a fresh wire
// NetworkRef.
func MakeNonNullNetwork(net *hypervisor.Network) NetworkRef {
	return NetworkRef{Name: net.Name, UUID: net.UUID}
}

// WithDomain resolves ref to a live handle and runs fn against it.
func WithDomain(ctx context.Context, conn hypervisor.Connection, ref DomainRef, fn func(*hypervisor.Domain) error) error {
	dom, err := GetNonNullDomain(ctx, conn, ref)
	if err != nil {
		return err
	}
	return fn(dom)
}

// WithNetwork is the network counterpart of WithDomain. Networks have no
// consuming operation equivalent to DOMAIN_DESTROY, so no handle is ever
// retained past fn's return.
func WithNetwork(ctx context.Context, conn hypervisor.Connection, ref NetworkRef, fn func(*hypervisor.Network) error) error {
	net, err := GetNonNullNetwork(ctx, conn, ref)
	if err != nil {
		return err
	}
	return fn(net)
}
