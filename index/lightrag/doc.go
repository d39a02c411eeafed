// Copyright 2025 Poiesic Systems
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


// Package lightrag implements index.Indexer for a LightRAG HTTP service.
//
// # Endpoints
//
//   - GET /        health; 200 means available
//   - POST /index  body {"text": string}; 200 means the text was indexed
//   - POST /query  body {"query": string, "mode": string}; 200 with {"response": string}
//
// # Usage
//
//	cfg := index.NewConfig(index.WithBaseURL("http://localhost:8001"))
//	client, err := lightrag.NewClient(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if !client.IsAvailable(ctx) {
//	    return errors.New("index service is down")
//	}
//	err = client.Submit(ctx, "Soru: Nedir?\n\nCevap: Budur.")
//
// The client never retries; callers own retry policy.
package lightrag
