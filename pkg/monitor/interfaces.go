/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package monitor

//go:generate mockgen -destination=mock_monitor.go -package=monitor github.com/carverauto/probewatch/pkg/monitor Prober,ReplySource,Waiter,HostSource,Dispatcher,Clock

import (
	"context"
	"time"

	"github.com/carverauto/probewatch/pkg/hosts"
	"github.com/carverauto/probewatch/pkg/models"
	"github.com/carverauto/probewatch/pkg/notify"
)

// Prober sends one probe without waiting for the outcome.
type Prober interface {
	Detect(dst models.HostAddress)
}

// ReplySource yields the "ip:port" of one answering host per call, or false
// when nothing more is available right now.
type ReplySource interface {
	Capture() (string, bool)
}

// Waiter blocks until replies may be available or timeout passes.
type Waiter interface {
	Wait(timeout time.Duration) (int, error)
}

type HostSource interface {
	Load(ctx context.Context) ([]hosts.Entry, error)
}

type Dispatcher interface {
	Dispatch(msg *notify.Message)
}

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}
