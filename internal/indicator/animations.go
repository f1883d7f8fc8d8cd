// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package indicator

import "time"

// Initializing blinks red while the node brings up its collaborators.
var Initializing = &Animation{
	Name: "initializing",
	Steps: []Step{
		{Pattern: Pattern{Red: true}, Hold: 500 * time.Millisecond},
		{Pattern: Pattern{}, Hold: 500 * time.Millisecond},
	},
	Loop: Continue,
}

// TrackingSerial is solid red: samples go out on the serial stream.
var TrackingSerial = &Animation{
	Name:  "tracking-serial",
	Steps: []Step{{Pattern: Pattern{Red: true}, Hold: time.Millisecond}},
	Loop:  HoldLast,
}

// TrackingLink is solid orange: samples go out on the wireless link.
var TrackingLink = &Animation{
	Name:  "tracking-link",
	Steps: []Step{{Pattern: Pattern{Orange: true}, Hold: time.Millisecond}},
	Loop:  HoldLast,
}

// Idle is a short red flash every two and a half seconds: sampling is stopped.
var Idle = &Animation{
	Name: "idle",
	Steps: []Step{
		{Pattern: Pattern{Red: true}, Hold: 500 * time.Millisecond},
		{Pattern: Pattern{}, Hold: 2000 * time.Millisecond},
	},
	Loop: Continue,
}
