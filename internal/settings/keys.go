package settings

// Restaurant-level setting keys.
const (
	KeyRoundToTen         = "pricing.round_to_ten"
	KeyRoundingMode       = "pricing.rounding_mode"
	KeyBirthdayDays       = "pricing.birthday_days"
	KeyAllowNegativeStock = "inventory.allow_negative_stock"
)
