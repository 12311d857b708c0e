// Package factory resolves pluggable modules such as simulation stores and
// metrics sinks from configuration. A module is selected by a type name and
// configured through a raw map that factories decode with Decode:
//
//	storage:
//	  type: sqlite
//	  conf:
//	    path: /var/lib/chargesim/simulations.db
package factory
