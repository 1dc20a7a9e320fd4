// This file translates the decoded HCL blocks into the format-agnostic
// config model.

package hcl_adapter

import (
	"context"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
)

func (l *Loader) translateFile(ctx context.Context, root *fileRoot) (*config.Model, error) {
	m := &config.Model{}
	if root.Model != nil {
		m.Name = root.Model.Name
		m.Description = root.Model.Description
	}
	if root.Settings != nil {
		s, err := translateSettings(root.Settings)
		if err != nil {
			return nil, err
		}
		m.Settings = s
	}
	for _, d := range root.Drivers {
		drv, err := translateDriver(d)
		if err != nil {
			return nil, err
		}
		m.Drivers = append(m.Drivers, drv)
	}
	for _, c := range root.Components {
		n, err := l.translateComponent(ctx, c)
		if err != nil {
			return nil, err
		}
		m.Nodes = append(m.Nodes, n)
	}
	return m, nil
}

func translateSettings(s *settingsBlock) (config.Settings, error) {
	start, err := config.ParseDate(s.StartDate)
	if err != nil {
		return config.Settings{}, simerr.Configf("", "settings.start_date", "%v", err)
	}
	end, err := config.ParseDate(s.EndDate)
	if err != nil {
		return config.Settings{}, simerr.Configf("", "settings.end_date", "%v", err)
	}
	return config.Settings{Start: start, End: end}, nil
}

func translateDriver(d *driverBlock) (*config.Driver, error) {
	params, err := bodyAttributes(d.Params)
	if err != nil {
		return nil, simerr.Configf(d.Name, "params", "%v", err)
	}
	return &config.Driver{
		Name:      d.Name,
		Namespace: d.Namespace,
		Signal:    d.Signal,
		Mode:      d.Mode,
		Params:    params,
	}, nil
}

// translateComponent converts one component block into a node declaration.
func (l *Loader) translateComponent(ctx context.Context, c *componentBlock) (*config.Node, error) {
	logger := ctxlog.FromContext(ctx).With("node_type", c.Type, "node", c.Name)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Translating HCL component to internal config model.")

	n := &config.Node{Name: c.Name, Type: c.Type}

	params, err := bodyAttributes(c.Params)
	if err != nil {
		return nil, simerr.Configf(c.Name, "params", "%v", err)
	}
	n.Params = params

	if isExprDefined(ctx, c.Inflows, "inflows") {
		refs, err := references(c.Inflows)
		if err != nil {
			return nil, simerr.Configf(c.Name, "inflows", "%v", err)
		}
		n.Deps.Inflows = refs
	}
	if isExprDefined(ctx, c.Source, "source") {
		ref, err := reference(c.Source)
		if err != nil {
			return nil, simerr.Configf(c.Name, "source", "%v", err)
		}
		n.Deps.Source = ref
	}
	for _, conn := range c.Connections {
		ref, err := reference(conn.Source)
		if err != nil {
			return nil, simerr.Configf(c.Name, "connection.source", "%v", err)
		}
		n.Deps.Connections = append(n.Deps.Connections, config.Connection{
			Source: ref,
			Output: conn.Output,
			Input:  conn.Input,
		})
	}
	return n, nil
}
