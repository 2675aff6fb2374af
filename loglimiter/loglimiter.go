// thermal-capture - thermal camera streaming and temperature measurement
//  Copyright (C) 2021, The Thermaline Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package loglimiter

import (
	"fmt"
	"log"
	"time"
)

// New returns a Limiter which drops a log message when it repeats the
// previous one within minInterval.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Limiter suppresses runs of identical log messages. A message is
// dropped when it matches the previously logged message and arrives
// within the minimum interval. When a message finally gets through
// again a summary line reports how many repeats were dropped.
type Limiter struct {
	minInterval time.Duration
	now         func() time.Time
	lastMsg     string
	lastAt      time.Time
	suppressed  int
}

func (l *Limiter) Printf(format string, v ...interface{}) {
	l.Print(fmt.Sprintf(format, v...))
}

func (l *Limiter) Print(msg string) {
	now := l.now()
	if msg == l.lastMsg && now.Sub(l.lastAt) < l.minInterval {
		l.suppressed++
		return
	}
	if l.suppressed > 0 {
		log.Printf("(last message repeated %d more times)", l.suppressed)
		l.suppressed = 0
	}
	log.Print(msg)
	l.lastMsg = msg
	l.lastAt = now
}
