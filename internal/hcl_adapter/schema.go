package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a model file may hold. Unknown
// blocks and attributes are rejected by gohcl.
type fileRoot struct {
	Model      *modelBlock       `hcl:"model,block"`
	Settings   *settingsBlock    `hcl:"settings,block"`
	Drivers    []*driverBlock    `hcl:"driver,block"`
	Components []*componentBlock `hcl:"component,block"`
}

// modelBlock is `model "<name>" { description = "..." }`.
type modelBlock struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
}

type settingsBlock struct {
	StartDate string `hcl:"start_date"`
	EndDate   string `hcl:"end_date"`
}

// driverBlock is `driver "<name>" { mode = "..." params { ... } }`.
type driverBlock struct {
	Name      string       `hcl:"name,label"`
	Mode      string       `hcl:"mode,optional"`
	Namespace string       `hcl:"namespace,optional"`
	Signal    string       `hcl:"signal,optional"`
	Params    *paramsBlock `hcl:"params,block"`
}

// componentBlock is `component "<type>" "<name>" { ... }`. The reference
// attributes are kept as expressions so that both quoted strings and bare
// traversals (`catchment.runoff`) are accepted.
type componentBlock struct {
	Type        string             `hcl:"type,label"`
	Name        string             `hcl:"name,label"`
	Inflows     hcl.Expression     `hcl:"inflows,optional"`
	Source      hcl.Expression     `hcl:"source,optional"`
	Connections []*connectionBlock `hcl:"connection,block"`
	Params      *paramsBlock       `hcl:"params,block"`
}

type connectionBlock struct {
	Source hcl.Expression `hcl:"source"`
	Output string         `hcl:"output,optional"`
	Input  string         `hcl:"input"`
}

// paramsBlock holds free-form attributes, decoded by the node type.
type paramsBlock struct {
	Body hcl.Body `hcl:",remain"`
}
