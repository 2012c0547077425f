package charset

// subsetIndex maps the thirteen national option positions of the Latin G0
// set to 1-13.
var subsetIndex = [128]uint8{
	0x23: 1, 0x24: 2, 0x40: 3, 0x5B: 4, 0x5C: 5, 0x5D: 6, 0x5E: 7,
	0x5F: 8, 0x60: 9, 0x7B: 10, 0x7C: 11, 0x7D: 12, 0x7E: 13,
}

var nationalSubsets = [...][13]rune{
	Czech:    {'#', 'ů', 'č', 'ť', 'ž', 'ý', 'í', 'ř', 'é', 'á', 'ě', 'ú', 'š'},
	English:  {'£', '$', '@', '←', '½', '→', '↑', '#', '―', '¼', '‖', '¾', '÷'},
	Estonian: {'#', 'õ', 'Š', 'Ä', 'Ö', 'Ž', 'Ü', 'Õ', 'š', 'ä', 'ö', 'ž', 'ü'},
	French:   {'é', 'ï', 'à', 'ë', 'ê', 'ù', 'î', '#', 'è', 'â', 'ô', 'û', 'ç'},
	German:   {'#', '$', '§', 'Ä', 'Ö', 'Ü', '^', '_', '°', 'ä', 'ö', 'ü', 'ß'},
	Italian:  {'£', '$', 'é', '°', 'ç', '→', '↑', '#', 'ù', 'à', 'ò', 'è', 'ì'},
	Lettish:  {'#', '$', 'Š', 'ė', 'ę', 'Ž', 'č', 'ū', 'š', 'ą', 'ų', 'ž', 'į'},
	Polish:   {'#', 'ń', 'ą', 'Ƶ', 'Ś', 'Ł', 'ć', 'ó', 'ę', 'ż', 'ś', 'ł', 'ź'},
	Spanish:  {'ç', '$', '¡', 'á', 'é', 'í', 'ó', 'ú', '¿', 'ü', 'ñ', 'è', 'à'},
	Rumanian: {'#', '¤', 'Ţ', 'Â', 'Ş', 'Ă', 'Î', 'ı', 'ţ', 'â', 'ş', 'ă', 'î'},
	Serbian:  {'#', 'Ë', 'Č', 'Ć', 'Ž', 'Đ', 'Š', 'ë', 'č', 'ć', 'ž', 'đ', 'š'},
	Swedish:  {'#', '¤', 'É', 'Ä', 'Ö', 'Å', 'Ü', '_', 'é', 'ä', 'ö', 'å', 'ü'},
	Turkish:  {'₤', 'ğ', 'İ', 'Ş', 'Ö', 'Ç', 'Ü', 'Ğ', 'ı', 'ş', 'ö', 'ç', 'ü'},
}

// latinG2 covers 0x20-0x7F. Column 4 holds the non-spacing diacritical
// marks, shown here as their spacing forms.
var latinG2 = [96]rune{
	' ', '¡', '¢', '£', '$', '¥', '#', '§', '¤', '‘', '“', '«', '←', '↑', '→', '↓',
	'°', '±', '²', '³', '×', 'µ', '¶', '·', '÷', '’', '”', '»', '¼', '½', '¾', '¿',
	' ', '`', '´', 'ˆ', '˜', '¯', '˘', '˙', '¨', '.', '˚', '¸', '_', '˝', '˛', 'ˇ',
	'―', '¹', '®', '©', '™', '♪', '₠', '‰', 'α', ' ', ' ', ' ', '⅛', '⅜', '⅝', '⅞',
	'Ω', 'Æ', 'Đ', 'ª', 'Ħ', ' ', 'Ĳ', 'Ŀ', 'Ł', 'Ø', 'Œ', 'º', 'Þ', 'Ŧ', 'Ŋ', 'ŉ',
	'ĸ', 'æ', 'đ', 'ð', 'ħ', 'ı', 'ĳ', 'ŀ', 'ł', 'ø', 'œ', 'ß', 'þ', 'ŧ', 'ŋ', '■',
}

// combining maps diacritic codes 1-15 to Unicode combining marks.
var combining = [16]rune{
	0,
	'\u0300', '\u0301', '\u0302', '\u0303', '\u0304', '\u0306', '\u0307',
	'\u0308', '\u0323', '\u030A', '\u0327', '\u0332', '\u030B', '\u0328', '\u030C',
}
