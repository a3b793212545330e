// Package pagination collects every page of a category.
//
// The catalogue reports the total item count with the first page. When it
// does, the remaining pages are fetched in parallel by a bounded worker
// group; otherwise pages are followed one by one until the catalogue reports
// no more. Items are always returned in page order.
//
// Example usage:
//
//	collector := pagination.NewCollector(client, pagination.DefaultConfig())
//	result, err := collector.Collect(ctx, "Fiction")
//	if err != nil {
//		return err
//	}
//	for _, item := range result.Items {
//		fmt.Println(item.Title)
//	}
package pagination
