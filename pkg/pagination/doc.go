// Package pagination streams paged PMS collections as ordered batches.
//
// Two remote protocols are supported behind one Engine:
//
//   - standard: page/size query parameters, the server is stateless
//   - scroll: the server issues a continuation token with every response
//
// The engine is pull based. Each batch costs exactly one fetch, and the
// next fetch only happens when the caller asks for the next batch:
//
//	engine, err := pagination.NewEngine[pms.Unit](client, pagination.DefaultConfig())
//	seq, err := engine.Stream(ctx, pagination.Request{
//		Path:      "/pms/units",
//		Size:      100,
//		ItemsPath: "_embedded.units",
//	})
//	for batch, err := range seq {
//		if err != nil {
//			return err
//		}
//		process(batch.Items)
//	}
//
// Page*size is bounded by Config.MaxTotalResults. A request starting past
// the bound fails in Stream with *BoundsExceededError before any fetch; a
// run that reaches the bound stops quietly.
//
// CollectAll and CollectSummary exhaust a stream and return either a full
// result or an error, never a truncated aggregate.
package pagination
