// Package drivers holds the shared external signals (precipitation,
// temperature, evapotranspiration and so on) that every node may read during
// a timestep.
//
// # Snapshots
//
// A Registry owns an ordered list of bound sources. Refresh evaluates every
// source for one date and swaps in a new immutable Snapshot as a whole. A
// failed Refresh leaves the previous snapshot in place. Nodes only ever see
// the registry through the read-only Reader interface.
//
// # Two views, one map
//
// A value can be read by driver name (`Get("rain")`) or by a
// namespace-qualified signal (`Lookup("climate", "precipitation")`, or the
// typed `Climate()` view). The qualified name is bound to a driver name once,
// when the driver is registered, and both views read the same snapshot map.
// There is no runtime choice between accessors, so the views cannot disagree.
package drivers
