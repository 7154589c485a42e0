/*
Copyright (C) 2026  Tau Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package storage

import "golang.org/x/exp/constraints"

// Numeric is the fixed-size POD value constraint the storage engine is
// generic over (spec.md §9 "Generics over value type"), grounded on the
// same constraints-based generic discipline the teacher's own
// third_party/NonLockingReadMap uses for its key type parameter. The
// network-visible series fixes this at float64; the engine itself accepts
// any fixed-width integer or floating point type.
type Numeric interface {
	constraints.Integer | constraints.Float
}
