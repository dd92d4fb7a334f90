package fieldnavigator

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/jedb/domain"
)

type GetSetterTestSuite struct {
	suite.Suite
}

// Can read and modify data at a valid given index of an array with the
// result of [NewGetSetterWithArrayIndex].
func (s *GetSetterTestSuite) TestNewGetSetterWithArrayIndex() {
	arr := []domain.Value{domain.Int(0), domain.Int(1), domain.Int(2), domain.Str("3")}
	gs := NewGetSetterWithArrayIndex(arr, 3)

	value, defined := gs.Get()
	s.True(defined)
	s.Equal("3", value.Str())

	gs.Set(domain.Int(3))
	s.Equal(int64(3), arr[3].Int())

	gs.Unset()
	s.True(arr[3].IsNull())
}

// Cannot find a defined value nor modify an out-of-bounds index with
// [NewGetSetterWithArrayIndex].
func (s *GetSetterTestSuite) TestNewGetSetterWithArrayIndexOutOfBounds() {
	arr := []domain.Value{domain.Int(0), domain.Int(1), domain.Int(2), domain.Str("3")}
	gs := NewGetSetterWithArrayIndex(arr, 4)

	value, defined := gs.Get()
	s.False(defined)
	s.True(value.IsUndefined())

	gs.Set(domain.Int(3))
	s.Equal("3", arr[3].Str())

	gs.Unset()
	s.Equal("3", arr[3].Str())
}

// Can get, set and unset a field with [NewGetSetterWithDoc].
func (s *GetSetterTestSuite) TestNewGetSetterWithDoc() {
	obj := domain.NewDoc(domain.Field{Name: "oh", Value: domain.Str("no")})
	gs := NewGetSetterWithDoc(obj, "oh")

	value, defined := gs.Get()
	s.True(defined)
	s.Equal("no", value.Str())

	gs.Set(domain.Str("yes"))
	s.Equal("yes", obj.Get("oh").Str())

	gs.Unset()
	s.False(obj.Has("oh"))

	value, defined = gs.Get()
	s.False(defined)
	s.True(value.IsUndefined())
}

// Cannot get valid data nor modify a GetSetter from [NewGetSetterEmpty].
func (s *GetSetterTestSuite) TestNewGetSetterEmpty() {
	gs := NewGetSetterEmpty()

	value, defined := gs.Get()
	s.False(defined)
	s.True(value.IsUndefined())

	gs.Set(domain.Int(2))
	value, defined = gs.Get()
	s.False(defined)
	s.True(value.IsUndefined())

	gs.Unset()
	value, defined = gs.Get()
	s.False(defined)
	s.True(value.IsUndefined())
}

func TestGetSetterTestSuite(t *testing.T) {
	suite.Run(t, new(GetSetterTestSuite))
}
