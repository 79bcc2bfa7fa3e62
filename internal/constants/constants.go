package constants

const USER_AGENT = "pochinki/0.1.0 (+https://github.com/pochinki/pochinki)"
