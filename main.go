/*
Copyright (C) 2026  MemCP Contributors

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
/*
	dictcache: dictionary-assisted value compression for an in-memory
	key/value cache.
*/
package main

import (
	"fmt"

	"github.com/launix-de/dictcache/core"
)

func main() {
	fmt.Print(`dictcache Copyright (C) 2026   MemCP Contributors
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;
`)
	cfg := core.DefaultConfig()
	ctx, err := core.NewContext(cfg)
	if err != nil {
		panic(err)
	}
	defer ctx.Stop()

	frame := ctx.MaybeEncode([]byte("users/42"), []byte(`{"id":42,"name":"demo"}`))
	value, err := ctx.MaybeDecode(frame)
	if err != nil {
		panic(err)
	}
	fmt.Printf("round trip: %d -> %d bytes: %s\n", len(frame), len(value), value)
}
