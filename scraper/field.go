package scraper

// Field is the outcome of reading one value from the page: either the value
// or the reason it could not be read.
type Field[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successfully read value.
func Ok[T any](v T) Field[T] {
	return Field[T]{Value: v}
}

// Failed records why a value could not be read.
func Failed[T any](err error) Field[T] {
	return Field[T]{Err: err}
}

// Present reports whether the value was read.
func (f Field[T]) Present() bool {
	return f.Err == nil
}

// Or returns the value, or def when it could not be read.
func (f Field[T]) Or(def T) T {
	if f.Err != nil {
		return def
	}
	return f.Value
}

// MapField applies fn to a present value and passes failures through.
func MapField[T, U any](f Field[T], fn func(T) U) Field[U] {
	if f.Err != nil {
		return Failed[U](f.Err)
	}
	return Ok(fn(f.Value))
}

// RawRecord is the unvalidated data read from one listing's detail panel.
type RawRecord struct {
	Name         Field[string]
	Address      Field[string]
	Website      Field[string]
	Phone        Field[string]
	ReviewCount  Field[string]
	Rating       Field[string]
	Introduction Field[string]
	Category     Field[string]
	Hours        Field[string]
}

// missing returns the names of the fields that could not be read.
func (r RawRecord) missing() []string {
	var out []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"name", r.Name.Present()},
		{"address", r.Address.Present()},
		{"website", r.Website.Present()},
		{"phone", r.Phone.Present()},
		{"review_count", r.ReviewCount.Present()},
		{"rating", r.Rating.Present()},
		{"introduction", r.Introduction.Present()},
		{"category", r.Category.Present()},
		{"hours", r.Hours.Present()},
	} {
		if !f.ok {
			out = append(out, f.name)
		}
	}
	return out
}
