package domain

const (
	// DefaultPage и DefaultPageLimit применяются, когда параметры пагинации не заданы.
	DefaultPage      = 1
	DefaultPageLimit = 10
)

// PageRequest задаёт параметры постраничной выборки заказов.
type PageRequest struct {
	Page   int
	Limit  int
	Status OrderStatus
}

// PageMeta описывает положение страницы в общей выборке.
type PageMeta struct {
	Total    int
	Page     int
	LastPage int
}

// OrderPage — страница заказов без позиций.
type OrderPage struct {
	Data []Order
	Meta PageMeta
}

// Skip возвращает количество пропускаемых строк.
func (p PageRequest) Skip() int {
	return (p.Page - 1) * p.Limit
}

// LastPage возвращает ceil(total/limit); для пустой выборки 0.
func LastPage(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Normalize подставляет значения по умолчанию для незаданных page/limit и проверяет параметры.
func (p PageRequest) Normalize() (PageRequest, error) {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Page < 1 || p.Limit < 1 {
		return p, ErrInvalidPagination
	}
	if p.Status != "" && !p.Status.Valid() {
		return p, &InvalidStatusError{Value: string(p.Status)}
	}
	return p, nil
}
