package app

import (
	"github.com/specialistvlad/hydrogrid/internal/registry"
	"github.com/specialistvlad/hydrogrid/modules/catchment"
	"github.com/specialistvlad/hydrogrid/modules/constant"
	"github.com/specialistvlad/hydrogrid/modules/demand"
	"github.com/specialistvlad/hydrogrid/modules/diversion"
	"github.com/specialistvlad/hydrogrid/modules/junction"
	"github.com/specialistvlad/hydrogrid/modules/lagged"
	"github.com/specialistvlad/hydrogrid/modules/metstation"
	"github.com/specialistvlad/hydrogrid/modules/pump"
	"github.com/specialistvlad/hydrogrid/modules/reservoir"
)

// coreModules is the definitive list of all node types that are compiled
// into the hydrogrid binary.
var coreModules = []registry.Module{
	&catchment.Module{},
	&constant.Module{},
	&demand.Module{},
	&diversion.Module{},
	&junction.Module{},
	&lagged.Module{},
	&metstation.Module{},
	&pump.Module{},
	&reservoir.Module{},
}
