// Copyright 2025 The senseai Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import "errors"

// Repository errors. Callers translate ErrNotFound into the domain's own
// not-found errors.
var (
	ErrNotFound            = errors.New("record not found")
	ErrStorageClosed       = errors.New("storage is closed")
	ErrSerializationFailed = errors.New("serialization failed")
)
